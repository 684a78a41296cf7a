package value

type Error string

var (
	ErrNull  = Error("#NULL!")
	ErrDiv0  = Error("#DIV/0!")
	ErrValue = Error("#VALUE!")
	ErrRef   = Error("#REF!")
	ErrName  = Error("#NAME?")
	ErrNum   = Error("#NUM!")
	ErrNA    = Error("#N/A")
)

func (Error) Kind() ValueKind {
	return KindError
}

func (e Error) Error() string {
	return string(e)
}

func (e Error) String() string {
	return string(e)
}

func (e Error) Scalar() any {
	return string(e)
}

func (Error) sealed() {}
