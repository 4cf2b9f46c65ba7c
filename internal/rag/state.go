package rag

import "docqa/internal/model"

type Stage int

const (
	StageStart Stage = iota
	StageRephrase
	StageRetrieve
	StageSummarize
	StageGenerate
	StageEnd
)

func (s Stage) String() string {
	switch s {
	case StageStart:
		return "START"
	case StageRephrase:
		return "REPHRASE"
	case StageRetrieve:
		return "RETRIEVE"
	case StageSummarize:
		return "SUMMARIZE"
	case StageGenerate:
		return "GENERATE"
	case StageEnd:
		return "END"
	}
	return "UNKNOWN"
}

func (s Stage) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// State is the per-request working set. Empty strings mean absent.
type State struct {
	Messages          []model.ChatMessage
	RephrasedQuestion string
	SourceDocuments   []model.DocumentChunk
	ContextSummary    string
	Reply             *model.ChatMessage
}

// update is the partial output of one stage. Nil fields leave State as is.
type update struct {
	rephrased *string
	documents *[]model.DocumentChunk
	summary   *string
	reply     *model.ChatMessage
}

func (s *State) apply(u update) {
	if u.rephrased != nil {
		s.RephrasedQuestion = *u.rephrased
	}
	if u.documents != nil {
		s.SourceDocuments = *u.documents
	}
	if u.summary != nil {
		s.ContextSummary = *u.summary
	}
	if u.reply != nil {
		s.Reply = u.reply
	}
}

// Latest returns the content of the newest message.
func (s State) Latest() string {
	if len(s.Messages) == 0 {
		return ""
	}
	return s.Messages[len(s.Messages)-1].Content
}

// Query is what retrieval, summarization and generation work from: the
// rephrased question when there is one, the latest message otherwise.
func (s State) Query() string {
	if s.RephrasedQuestion != "" {
		return s.RephrasedQuestion
	}
	return s.Latest()
}

// Route picks the stage after current. Only START branches: a single message
// goes straight to GENERATE, longer conversations go through retrieval.
func Route(current Stage, state State) Stage {
	switch current {
	case StageStart:
		if len(state.Messages) > 1 {
			return StageRephrase
		}
		return StageGenerate
	case StageRephrase:
		return StageRetrieve
	case StageRetrieve:
		return StageSummarize
	case StageSummarize:
		return StageGenerate
	default:
		return StageEnd
	}
}
