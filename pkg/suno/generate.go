package suno

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

const (
	EndpointDescription = "/suno/generate/description-mode"
	EndpointGenerate    = "/suno/generate"
	EndpointSubmitMusic = "/suno/submit/music"
)

// Mode is the user-facing kind of creation request.
type Mode string

const (
	ModeSimple Mode = "simple"
	ModeCustom Mode = "custom"
	ModeExtend Mode = "extend"
	ModeCover  Mode = "cover"
)

// Model is the generation model version.
type Model string

const (
	ModelChirpAuk      Model = "chirp-auk"
	ModelChirpV3       Model = "chirp-v3-0"
	ModelChirpV3_5_Tau Model = "chirp-v3-5-tau"
	ModelChirpV4       Model = "chirp-v4"
	ModelChirpCrow     Model = "chirp-crow"

	DefaultModel = ModelChirpCrow
)

// TaskType is the task discriminator used by the remote service.
type TaskType string

const (
	TaskGenStem         TaskType = "gen_stem"
	TaskCustomGenerate  TaskType = "custom_generate"
	TaskUploadExtend    TaskType = "upload_extend"
	TaskCover           TaskType = "cover"
	TaskDescriptionMode TaskType = "description_mode"
)

const generationTypeText = "TEXT"

// Intent is a creation request as the user expressed it.
type Intent struct {
	Mode         Mode   `json:"mode" validate:"required,oneof=simple custom extend cover"`
	Model        Model  `json:"mv,omitempty" validate:"omitempty,oneof=chirp-auk chirp-v3-0 chirp-v3-5-tau chirp-v4 chirp-crow"`
	Title        string `json:"title,omitempty"`
	Tags         string `json:"tags,omitempty" validate:"required_if=Mode custom"`
	Instrumental bool   `json:"instrumental,omitempty"`

	// Description is the free text used by simple mode.
	Description string `json:"description,omitempty" validate:"required_if=Mode simple"`
	// Prompt holds the lyrics for custom, extend and cover modes.
	Prompt string `json:"prompt,omitempty"`

	ReferenceClipID string `json:"reference_clip_id,omitempty" validate:"required_if=Mode extend,required_if=Mode cover"`
	// ContinueAt is the extend offset in seconds.
	ContinueAt float64 `json:"continue_at,omitempty" validate:"gte=0"`
}

// Request is the wire request an intent maps to.
type Request struct {
	Endpoint string
	Task     TaskType
	Body     any
}

type descriptionRequest struct {
	GPTDescriptionPrompt string `json:"gpt_description_prompt"`
	MakeInstrumental     bool   `json:"make_instrumental"`
	MV                   Model  `json:"mv"`
	Prompt               string `json:"prompt"`
}

type generateRequest struct {
	Task             TaskType `json:"task,omitempty"`
	ContinueClipID   *string  `json:"continue_clip_id,omitempty"`
	ContinueAt       *int     `json:"continue_at,omitempty"`
	Prompt           string   `json:"prompt"`
	Tags             string   `json:"tags"`
	MV               Model    `json:"mv"`
	Title            string   `json:"title"`
	MakeInstrumental *bool    `json:"make_instrumental,omitempty"`
}

type coverRequest struct {
	Task             TaskType `json:"task"`
	CoverClipID      string   `json:"cover_clip_id"`
	GenerationType   string   `json:"generation_type"`
	MV               Model    `json:"mv"`
	Prompt           string   `json:"prompt"`
	Tags             string   `json:"tags"`
	Title            string   `json:"title"`
	MakeInstrumental bool     `json:"make_instrumental"`
	ContinueClipID   *string  `json:"continue_clip_id"`
	ContinueAt       *int     `json:"continue_at"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})
	v.RegisterStructValidation(validateIntent, Intent{})
	return v
}

func validateIntent(sl validator.StructLevel) {
	in := sl.Current().Interface().(Intent)
	if in.Mode == ModeCustom && in.Prompt == "" && !in.Instrumental {
		sl.ReportError(in.Prompt, "prompt", "Prompt", "lyrics_or_instrumental", "")
	}
}

func toValidationError(err error) error {
	var errs validator.ValidationErrors
	if !errors.As(err, &errs) || len(errs) == 0 {
		return &ValidationError{Field: "intent", Message: err.Error()}
	}
	fe := errs[0]
	var msg string
	switch fe.Field() {
	case "mode":
		msg = "unknown mode"
	case "mv":
		msg = fmt.Sprintf("unknown model %v", fe.Value())
	case "tags":
		msg = "style required"
	case "description":
		msg = "description required"
	case "prompt":
		msg = "lyrics required unless instrumental"
	case "reference_clip_id":
		msg = "reference clip id required for extend and cover"
	case "continue_at":
		msg = "must not be negative"
	default:
		msg = fe.Error()
	}
	return &ValidationError{Field: fe.Field(), Message: msg}
}

// Build maps an intent to the endpoint and body the remote service expects.
// It never touches the network.
func Build(in *Intent) (*Request, error) {
	if in == nil {
		return nil, &ValidationError{Field: "intent", Message: "missing"}
	}
	if err := validate.Struct(in); err != nil {
		return nil, toValidationError(err)
	}
	mv := in.Model
	if mv == "" {
		mv = DefaultModel
	}

	switch in.Mode {
	case ModeSimple:
		return &Request{
			Endpoint: EndpointDescription,
			Task:     TaskDescriptionMode,
			Body: &descriptionRequest{
				GPTDescriptionPrompt: in.Description,
				MakeInstrumental:     in.Instrumental,
				MV:                   mv,
			},
		}, nil
	case ModeCustom:
		instrumental := in.Instrumental
		return &Request{
			Endpoint: EndpointGenerate,
			Task:     TaskCustomGenerate,
			Body: &generateRequest{
				Prompt:           in.Prompt,
				Tags:             in.Tags,
				MV:               mv,
				Title:            in.Title,
				MakeInstrumental: &instrumental,
			},
		}, nil
	case ModeExtend:
		clipID := in.ReferenceClipID
		continueAt := int(in.ContinueAt)
		return &Request{
			Endpoint: EndpointGenerate,
			Task:     TaskUploadExtend,
			Body: &generateRequest{
				Task:           TaskUploadExtend,
				ContinueClipID: &clipID,
				ContinueAt:     &continueAt,
				Prompt:         in.Prompt,
				Tags:           in.Tags,
				MV:             mv,
				Title:          in.Title,
			},
		}, nil
	case ModeCover:
		return &Request{
			Endpoint: EndpointSubmitMusic,
			Task:     TaskCover,
			Body: &coverRequest{
				Task:             TaskCover,
				CoverClipID:      in.ReferenceClipID,
				GenerationType:   generationTypeText,
				MV:               mv,
				Prompt:           in.Prompt,
				Tags:             in.Tags,
				Title:            in.Title,
				MakeInstrumental: in.Instrumental,
			},
		}, nil
	}
	return nil, &ValidationError{Field: "mode", Message: "unknown mode"}
}

// Submit builds the request for the intent, sends it and returns the remote
// task identifier.
func (c *Client) Submit(ctx context.Context, in *Intent) (string, error) {
	req, err := Build(in)
	if err != nil {
		return "", err
	}
	var raw json.RawMessage
	if err := c.Call(ctx, http.MethodPost, req.Endpoint, req.Body, &raw); err != nil {
		return "", fmt.Errorf("suno: couldn't submit %s task: %w", in.Mode, err)
	}
	id := TaskID(raw)
	if id == "" {
		return "", fmt.Errorf("%w: no task id in %s response", ErrMalformedResponse, req.Endpoint)
	}
	return id, nil
}

// TaskID extracts a task identifier from a submission response. The
// service is not consistent across endpoints, so "data", "task_id" and "id"
// are tried in that order and the first non-empty value wins.
func TaskID(raw []byte) string {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil {
		return ""
	}
	for _, k := range []string{"data", "task_id", "id"} {
		if s := jsonString(obj[k]); s != "" {
			return s
		}
	}
	return ""
}

func jsonString(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	d := json.NewDecoder(bytes.NewReader(raw))
	d.UseNumber()
	var v any
	if err := d.Decode(&v); err != nil {
		return ""
	}
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case json.Number:
		return t.String()
	}
	return ""
}
