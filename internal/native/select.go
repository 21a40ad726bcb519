package native

import (
	"errors"
	"log"
)

// Select opens the native wrapper unless dev is set. When the binary was
// built without the wrapper it falls back to a SyntheticLibrary and logs
// why. hardware reports whether hardware is in use.
func Select(dev bool) (lib Library, hardware bool, err error) {
	if dev {
		return NewSyntheticLibrary(), false, nil
	}
	lib, err = Open()
	switch {
	case err == nil:
		return lib, true, nil
	case errors.Is(err, ErrNativeUnavailable):
		log.Printf("%v; using synthetic camera", err)
		return NewSyntheticLibrary(), false, nil
	default:
		return nil, false, err
	}
}
