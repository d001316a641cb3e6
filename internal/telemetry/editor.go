/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package telemetry

import (
	"goscriptwriter/internal/scenario"
)

// ObserveEngine forwards block type changes and unbalanced groups of e as events.
// Only type names are sent. The returned function stops forwarding.
func (c *Client) ObserveEngine(e *scenario.Engine) (cancel func()) {
	if e == nil {
		return func() {}
	}
	return e.Subscribe(func(ev scenario.Event) {
		switch ev.Kind {
		case scenario.StyleChanged:
			c.Event("block_type_changed", map[string]any{"from": ev.From.String(), "to": ev.To.String()})
		case scenario.UnbalancedGroup:
			c.Event("unbalanced_group", map[string]any{"header": ev.From.String()})
		}
	})
}
