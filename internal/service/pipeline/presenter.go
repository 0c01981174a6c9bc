package pipeline

import "github.com/Techsolutions2024/strawberry/internal/service/render"

// Presenter receives one payload per tick. Implementations must not block.
type Presenter interface {
	Present(p render.Payload)
}

// PresenterFunc adapts a function to Presenter.
type PresenterFunc func(p render.Payload)

func (f PresenterFunc) Present(p render.Payload) { f(p) }

type discardPresenter struct{}

func (discardPresenter) Present(render.Payload) {}
