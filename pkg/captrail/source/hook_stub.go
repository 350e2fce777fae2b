//go:build !windows

package source

// NewHook is unavailable off Windows; use NewReplay or another Source.
func NewHook() (Source, error) {
	return nil, ErrUnsupported
}
