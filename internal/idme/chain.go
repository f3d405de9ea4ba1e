package idme

// SetRequest one item mutation travelling down the set chain
type SetRequest struct {
	Name  string
	Value []byte
}

// SetHandler set SetMiddleware handle.
type SetHandler interface {
	Set(*SetRequest) error
}

// The SetHandlerFunc type is an adapter to allow the use of
// ordinary functions as handlers. If f is a function
// with the appropriate signature, SetHandlerFunc(f) is a
// Handler that calls f.
type SetHandlerFunc func(*SetRequest) error

// Set calls f(req).
func (f SetHandlerFunc) Set(req *SetRequest) error {
	return f(req)
}

// MiddlewareSetFunc is a function which receives an SetHandler and returns another SetHandler
type MiddlewareSetFunc func(SetHandler) SetHandler

// setMiddlewarer interface is anything which implements a MiddlewareSetFunc named SetMiddleware
type setMiddlewarer interface {
	SetMiddleware(SetHandler) SetHandler
}

// SetMiddleware allows MiddlewareSetFunc to implement the setMiddlewarer interface
func (mw MiddlewareSetFunc) SetMiddleware(h SetHandler) SetHandler {
	return mw(h)
}

// SetChain use pattern chain of responsibility around every item mutation.
// The last handler is the codec update followed by the write-back.
type SetChain struct {
	setMiddlewares []setMiddlewarer
}

func NewSetChain() *SetChain {
	return &SetChain{}
}

// Attach appends a MiddlewareSetFunc to the set chain
func (p *SetChain) Attach(mwf ...MiddlewareSetFunc) *SetChain {
	for _, fn := range mwf {
		p.setMiddlewares = append(p.setMiddlewares, fn)
	}
	return p
}

func (p *SetChain) then(final SetHandler) SetHandler {
	h := final
	// Build SetMiddleware chain, the first attached runs first
	for i := len(p.setMiddlewares) - 1; i >= 0; i-- {
		h = p.setMiddlewares[i].SetMiddleware(h)
	}
	return h
}
