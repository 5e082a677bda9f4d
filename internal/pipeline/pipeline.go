// Package pipeline drives the four-stage generation pipeline
// (matrix → specification → exam → answer key) and owns the draft state
// for the current subject/grade/semester.
package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/thaybinh/hoso7991/internal/llm/prompts"
	"github.com/thaybinh/hoso7991/internal/model"
	"github.com/thaybinh/hoso7991/internal/store"
)

// Generator produces text for a prompt and system instruction. Satisfied
// by *llm.Client; tests substitute a deterministic fake.
type Generator interface {
	Generate(ctx context.Context, prompt, systemInstruction string) (string, error)
}

// DraftStore persists and restores artifact bundles per draft key.
// Satisfied by *store.Store.
type DraftStore interface {
	SaveDraft(key string, b model.DraftBundle) error
	LoadDraft(key string) (*model.DraftBundle, error)
}

// ParseError reports a 200 response whose text was not valid JSON for
// the stage's shape. It is distinct from a successful-but-empty
// artifact, so "the model produced nothing" and "the response was
// unparseable" stay distinguishable.
type ParseError struct {
	Stage model.Stage
	Err   error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %s response: %v", e.Stage, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// Orchestrator sequences the generation stages and keeps the draft in
// sync with the store. All exported methods are safe for concurrent use;
// overlapping Generate calls for the same stage are fenced so that only
// the newest call's result is kept.
type Orchestrator struct {
	gen   Generator
	store DraftStore

	mu       sync.Mutex
	input    model.ExamInput
	stage    model.Stage
	bundle   model.DraftBundle
	busy     bool
	errMsg   string
	inflight map[model.Stage]uint64
}

// New creates an orchestrator with the given input, restoring any draft
// previously saved under the input's key.
func New(gen Generator, ds DraftStore, input model.ExamInput) (*Orchestrator, error) {
	o := &Orchestrator{
		gen:      gen,
		store:    ds,
		stage:    model.StageInput,
		inflight: make(map[model.Stage]uint64),
	}
	if err := o.SetInput(input); err != nil {
		return nil, err
	}
	return o, nil
}

// State is a point-in-time snapshot of the orchestrator.
type State struct {
	Input        model.ExamInput   `json:"input"`
	Stage        model.Stage       `json:"stage"`
	Busy         bool              `json:"busy"`
	ErrorMessage string            `json:"errorMessage,omitempty"`
	Draft        model.DraftBundle `json:"draft"`
}

// State returns a snapshot of the current pipeline state.
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return State{
		Input:        o.input,
		Stage:        o.stage,
		Busy:         o.busy,
		ErrorMessage: o.errMsg,
		Draft:        o.bundle,
	}
}

// SetInput replaces the exam parameters. Negative question counts clamp
// to zero. When the subject/grade/semester key changes, the draft saved
// under the new key is restored (or all artifacts reset to nil if none
// exists) and the pipeline returns to the input stage.
func (o *Orchestrator) SetInput(in model.ExamInput) error {
	in = in.Normalized()

	o.mu.Lock()
	defer o.mu.Unlock()

	newKey := draftKey(in)
	keyChanged := newKey != draftKey(o.input)
	o.input = in
	if !keyChanged && o.stage != "" && o.stage != model.StageInput {
		// Same draft: keep the current stage and artifacts.
		return nil
	}

	saved, err := o.store.LoadDraft(newKey)
	if err != nil {
		return fmt.Errorf("load draft: %w", err)
	}
	if saved != nil {
		o.bundle = *saved
	} else {
		o.bundle = model.DraftBundle{}
	}
	o.stage = model.StageInput
	o.errMsg = ""
	return nil
}

// Generate runs one pipeline stage: it builds the stage prompt from the
// current input and upstream artifacts, calls the generator, parses the
// response into the stage's typed artifact, stores it, and advances the
// current stage. On failure nothing advances and the user-visible error
// message is set; calling Generate again with the same stage is the
// retry action.
//
// A stage whose prerequisite artifact is missing is a silent no-op:
// state is left unchanged and no error is reported.
func (o *Orchestrator) Generate(ctx context.Context, stage model.Stage) error {
	o.mu.Lock()

	prompt, ok := o.promptFor(stage)
	if !ok {
		o.mu.Unlock()
		slog.Debug("ignoring generate for stage without prerequisite", "stage", stage)
		return nil
	}

	o.busy = true
	o.errMsg = ""
	o.inflight[stage]++
	token := o.inflight[stage]
	input := o.input
	o.mu.Unlock()

	text, genErr := o.gen.Generate(ctx, prompt, prompts.SystemInstruction)

	var artifact any
	var parseErr error
	if genErr == nil {
		artifact, parseErr = parseArtifact(stage, text)
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	if o.inflight[stage] != token {
		// A newer call for this stage superseded us; discard the result.
		slog.Debug("discarding superseded generation", "stage", stage)
		return nil
	}
	o.busy = false

	if genErr != nil {
		o.errMsg = genErr.Error()
		return genErr
	}
	if parseErr != nil {
		perr := &ParseError{Stage: stage, Err: parseErr}
		o.errMsg = perr.Error()
		return perr
	}

	o.applyArtifact(stage, artifact)
	o.stage = stage
	if err := o.store.SaveDraft(draftKey(input), o.bundle); err != nil {
		return fmt.Errorf("save draft: %w", err)
	}
	return nil
}

// promptFor builds the prompt for stage, or reports false when the
// stage is not generatable from the current state. Callers must hold mu.
func (o *Orchestrator) promptFor(stage model.Stage) (string, bool) {
	switch stage {
	case model.StageMatrix:
		return prompts.BuildMatrix(o.input), true
	case model.StageSpec:
		if o.bundle.Matrix == nil {
			return "", false
		}
		return prompts.BuildSpec(o.input, *o.bundle.Matrix), true
	case model.StageExam:
		if o.bundle.Spec == nil {
			return "", false
		}
		return prompts.BuildExam(o.input, *o.bundle.Spec), true
	case model.StageAnswers:
		if o.bundle.Exam == nil {
			return "", false
		}
		return prompts.BuildAnswers(*o.bundle.Exam), true
	default:
		return "", false
	}
}

func parseArtifact(stage model.Stage, text string) (any, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("empty response text")
	}
	switch stage {
	case model.StageMatrix:
		var v model.MatrixData
		if err := json.Unmarshal([]byte(text), &v); err != nil {
			return nil, err
		}
		return &v, nil
	case model.StageSpec:
		var v model.SpecData
		if err := json.Unmarshal([]byte(text), &v); err != nil {
			return nil, err
		}
		return &v, nil
	case model.StageExam:
		var v model.ExamData
		if err := json.Unmarshal([]byte(text), &v); err != nil {
			return nil, err
		}
		return &v, nil
	case model.StageAnswers:
		var v model.AnswerKeyData
		if err := json.Unmarshal([]byte(text), &v); err != nil {
			return nil, err
		}
		return &v, nil
	}
	return nil, fmt.Errorf("unknown stage %q", stage)
}

// applyArtifact stores a freshly parsed artifact. Regenerating a stage
// overwrites its artifact in place; downstream artifacts are left alone
// (stages are deliberately decoupled after generation). Callers must
// hold mu.
func (o *Orchestrator) applyArtifact(stage model.Stage, artifact any) {
	switch stage {
	case model.StageMatrix:
		o.bundle.Matrix = artifact.(*model.MatrixData)
	case model.StageSpec:
		o.bundle.Spec = artifact.(*model.SpecData)
	case model.StageExam:
		o.bundle.Exam = artifact.(*model.ExamData)
	case model.StageAnswers:
		o.bundle.Answers = artifact.(*model.AnswerKeyData)
	}
}

func draftKey(in model.ExamInput) string {
	return store.DraftKey(in.Subject, in.Grade, in.Semester)
}
