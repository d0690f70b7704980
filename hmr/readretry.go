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

package hmr

import (
	"time"

	"bennypowers.dev/devgraph/internal/platform"
)

const (
	readRetryAttempts = 10
	readRetryInterval = 10 * time.Millisecond
)

// ReadWithRetry reads file, retrying against editors that truncate a file
// before writing its new contents. A zero-byte read triggers up to
// readRetryAttempts stat polls, readRetryInterval apart, re-reading as soon
// as mtime advances past the time of the empty read.
func ReadWithRetry(fsys platform.FileSystem, clock platform.TimeProvider, file string) ([]byte, error) {
	data, err := fsys.ReadFile(file)
	if err != nil {
		return nil, err
	}
	if len(data) > 0 {
		return data, nil
	}

	info, err := fsys.Stat(file)
	if err != nil {
		return data, nil
	}
	seenMtime := info.ModTime()

	for attempt := 0; attempt < readRetryAttempts; attempt++ {
		clock.Sleep(readRetryInterval)

		info, err := fsys.Stat(file)
		if err != nil {
			return data, nil
		}
		if !info.ModTime().After(seenMtime) {
			continue
		}

		reread, err := fsys.ReadFile(file)
		if err != nil {
			return data, nil
		}
		return reread, nil
	}

	return data, nil
}
