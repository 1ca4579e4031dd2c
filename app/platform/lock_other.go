//go:build !unix && !windows

package platform

import "os"

type defaultLocker struct{}

func (defaultLocker) Lock(_ *os.File, flags Flags) error {
	if err := Validate(flags); err != nil {
		return err
	}
	return ErrUnsupported
}

func (defaultLocker) Unlock(_ *os.File) error {
	return ErrUnsupported
}
