/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package navigator

import "goscriptwriter/internal/domain"

// Outline flattens the tree in pre-order. Block is the header's position in document order.
func (t *Tree) Outline() domain.Outline {
	out := make(domain.Outline, 0, len(t.items)-1)
	t.Walk(func(id ItemID, depth int) bool {
		out = append(out, domain.OutlineEntry{
			Depth:       depth,
			Folder:      t.IsFolder(id),
			Number:      t.Number(id),
			Header:      t.Header(id),
			Description: t.Description(id),
			Block:       t.order[t.items[id].header],
		})
		return true
	})
	return out
}
