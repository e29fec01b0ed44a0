package translate

import "errors"

var (
	// ErrInvalidLanguage is returned for a target outside Languages. No backend call is made.
	ErrInvalidLanguage = errors.New("invalid language")
	// ErrTranslationFailed matches every *Error.
	ErrTranslationFailed = errors.New("translation failed")
)

// Error reports why a translation could not be produced.
type Error struct {
	Reason string
	Err    error
}

func (e *Error) Error() string {
	return "translation failed: " + e.Reason
}

// Is makes errors.Is(err, ErrTranslationFailed) true.
func (e *Error) Is(target error) bool {
	return target == ErrTranslationFailed
}

func (e *Error) Unwrap() error {
	return e.Err
}

func failed(reason string, err error) *Error {
	return &Error{Reason: reason, Err: err}
}
