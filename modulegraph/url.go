/*
Copyright © 2025 Benny Powers <web@bennypowers.com>

This program is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

This program is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with this program. If not, see <http://www.gnu.org/licenses/>.
*/

package modulegraph

import "strings"

// cleanRawURL strips the HMR timestamp query (?t=...) and the "this is an
// import, not a navigation" query (?import) from a raw request URL before
// it is used as a graph lookup key. Both queries are cache-busting/routing
// hints the client adds; neither changes module identity.
func cleanRawURL(rawURL string) string {
	path, query, hasQuery := strings.Cut(rawURL, "?")
	if !hasQuery {
		return rawURL
	}

	kept := make([]string, 0, 4)
	for _, part := range strings.Split(query, "&") {
		if part == "" {
			continue
		}
		key, _, _ := strings.Cut(part, "=")
		switch key {
		case "t", "import":
			continue
		default:
			kept = append(kept, part)
		}
	}

	if len(kept) == 0 {
		return path
	}
	return path + "?" + strings.Join(kept, "&")
}

// stripQuery removes everything from the first "?" onward, turning a
// resolved id (url + query) into a bare filesystem-shaped path.
func stripQuery(id string) string {
	path, _, _ := strings.Cut(id, "?")
	return path
}
