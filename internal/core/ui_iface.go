package core

import "github.com/dkeye/Classroom/internal/domain"

type Notifier interface {
	AddToast(message string)
}

type DialogSink interface {
	// ShowDialog assigns and returns the dialog id.
	ShowDialog(d domain.Dialog) string
	RemoveDialog(id string)
	Dialogs() []domain.Dialog
}

type Loader interface {
	StartLoading()
	StopLoading()
}

type SeqTracker interface {
	UpdateCurSeqID(id int64)
	UpdateLastSeqID(id int64)
}

// UI is everything the orchestrator pushes to the presentation layer.
type UI interface {
	Notifier
	DialogSink
	Loader
	SeqTracker
}

type Translator interface {
	T(key string) string
}
