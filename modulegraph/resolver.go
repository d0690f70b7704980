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

import (
	"context"
	"fmt"
)

// Resolved is what a Resolver returns for a raw URL: a resolved identifier
// (URL plus any query that disambiguates it) and optional plugin metadata.
type Resolved struct {
	ID   string
	Meta map[string]any
}

// Resolver is injected into the Graph; it is the transform pipeline's
// module resolution algorithm, treated here as an external collaborator.
type Resolver interface {
	ResolveID(ctx context.Context, rawURL string) (*Resolved, error)
}

// ResolveError reports that a Resolver returned no match for a raw URL.
type ResolveError struct {
	RawURL string
}

func (e *ResolveError) Error() string {
	return fmt.Sprintf("modulegraph: could not resolve %q", e.RawURL)
}

// ResolverFunc adapts a plain function to the Resolver interface.
type ResolverFunc func(ctx context.Context, rawURL string) (*Resolved, error)

func (f ResolverFunc) ResolveID(ctx context.Context, rawURL string) (*Resolved, error) {
	return f(ctx, rawURL)
}
