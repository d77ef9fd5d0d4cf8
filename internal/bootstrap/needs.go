package bootstrap

import (
	"github.com/muhammadchandra19/tickbar/internal/pipeline"
	"github.com/muhammadchandra19/tickbar/pkg/errors"
)

// Needs lists the external services a run connects to.
type Needs struct {
	QuestDB bool
}

// NeedsOf inspects def for the services its source and sinks use.
func NeedsOf(def *pipeline.Definition) Needs {
	var n Needs
	if def.Source.Kind == pipeline.SourceQuestDB {
		n.QuestDB = true
	}
	for _, s := range def.Sinks {
		if s.Kind == pipeline.SinkQuestDB {
			n.QuestDB = true
		}
	}
	return n
}

// CheckStandalone rejects definitions that only a library caller can
// satisfy. Memory stores are registered in code, so a definition run from
// the command line cannot read one.
func CheckStandalone(def *pipeline.Definition) error {
	if def.Source.Kind == pipeline.SourceMemory {
		return errors.NewConfigError(
			errors.ConfigInvalidOption, "source.kind",
			"memory sources are only available to library callers",
		)
	}
	return nil
}
