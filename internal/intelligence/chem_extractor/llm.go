package chem_extractor

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/turtacn/ChemSight/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/ChemSight/pkg/errors"
)

// Completer produces a completion for a prompt.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

const extractionPrompt = `You identify chemical compounds mentioned in user queries.
Reply with a single JSON object and nothing else: {"name": "<compound name or empty>", "smiles": "<SMILES or empty>"}.
If the query mentions no chemical compound, reply {"name": "", "smiles": ""}.

Query: %s
Answer:`

// LLMExtractor asks a language model for the compound a query refers to.
type LLMExtractor struct {
	completer Completer
	logger    logging.Logger
}

// NewLLMExtractor wraps completer as an EntityExtractor.
func NewLLMExtractor(completer Completer, logger logging.Logger) *LLMExtractor {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &LLMExtractor{completer: completer, logger: logger.Named("llm_extractor")}
}

type llmAnswer struct {
	Name   string `json:"name"`
	SMILES string `json:"smiles"`
}

// Extract returns at most one candidate. A name is preferred; its SMILES, if
// any, travels along as a suggestion for the resolver.
func (x *LLMExtractor) Extract(ctx context.Context, text string) ([]*Candidate, error) {
	if x.completer == nil {
		return nil, errors.New(errors.ErrCodeAIModelNotAvailable, "no language model configured")
	}
	reply, err := x.completer.Complete(ctx, fmt.Sprintf(extractionPrompt, text))
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeAIInferenceFailed, "entity extraction failed")
	}
	ans, err := parseAnswer(reply)
	if err != nil {
		x.logger.Debug("unparseable model reply", logging.String("reply", reply), logging.Err(err))
		return nil, err
	}

	name, smiles := strings.TrimSpace(ans.Name), strings.TrimSpace(ans.SMILES)
	switch {
	case name != "":
		c := &Candidate{
			Text:            name,
			Type:            EntityCommonName,
			Confidence:      confidenceLLM,
			Source:          SourceLLM,
			SuggestedSMILES: smiles,
		}
		c.StartOffset, c.EndOffset = locate(text, name)
		return []*Candidate{c}, nil
	case smiles != "":
		c := &Candidate{Text: smiles, Type: EntitySMILES, Confidence: confidenceLLM, Source: SourceLLM}
		c.StartOffset, c.EndOffset = locate(text, smiles)
		return []*Candidate{c}, nil
	}
	return nil, nil
}

// parseAnswer decodes the first JSON object in reply.
func parseAnswer(reply string) (*llmAnswer, error) {
	start := strings.IndexByte(reply, '{')
	end := strings.LastIndexByte(reply, '}')
	if start < 0 || end < start {
		return nil, errors.New(errors.ErrCodeAIInferenceFailed, "model reply contains no JSON object")
	}
	var ans llmAnswer
	if err := json.Unmarshal([]byte(reply[start:end+1]), &ans); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeAIInferenceFailed, "model reply is not valid JSON")
	}
	return &ans, nil
}

// locate returns the offsets of needle in text, or the whole text when the
// model paraphrased.
func locate(text, needle string) (int, int) {
	if i := strings.Index(foldASCII(text), foldASCII(needle)); i >= 0 {
		return i, i + len(needle)
	}
	return 0, len(text)
}
