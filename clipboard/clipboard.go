// Package clipboard wraps the system clipboard for copying captured
// task titles.
package clipboard

import cb "github.com/atotto/clipboard"

func Copy(text string) error {
	return cb.WriteAll(text)
}
