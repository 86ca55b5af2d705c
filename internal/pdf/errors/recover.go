package errors

import "fmt"

// Recover turns a panic raised while parsing or writing a PDF into a codec
// error stored in *err. It must be deferred directly:
//
//	defer pdferrors.Recover(&err, "reading PDF")
func Recover(err *error, op string) {
	if r := recover(); r != nil {
		*err = New(ErrorTypeCodec, fmt.Sprintf("%s: malformed document: %v", op, r))
	}
}
