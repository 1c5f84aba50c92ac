package assistant

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/deskhub/deskhub/internal/calendar"
	"github.com/deskhub/deskhub/internal/httpx"
	"github.com/deskhub/deskhub/pkg/logger"
	"github.com/deskhub/deskhub/pkg/metrics"
	"google.golang.org/genai"
)

const (
	chatSystem = "You are the assistant of a small-business workspace. Answer briefly and concretely."

	extractSystem = "Extract the tasks and appointments mentioned in the text. " +
		"Resolve relative dates against the current time given in the prompt. " +
		"Return start as an RFC3339 timestamp and the duration in minutes."

	maxHistory = 20
)

var ErrDisabled = fmt.Errorf("%w: assistant is not configured", httpx.ErrUnavailable)

// taskSchema describes the JSON list the model must return for extraction.
var taskSchema = &genai.Schema{
	Type: genai.TypeArray,
	Items: &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"title":           {Type: genai.TypeString},
			"start":           {Type: genai.TypeString, Format: "date-time"},
			"durationMinutes": {Type: genai.TypeInteger},
		},
		Required: []string{"title", "start"},
	},
}

type extracted struct {
	Title           string `json:"title"`
	Start           string `json:"start"`
	DurationMinutes int    `json:"durationMinutes"`
}

// Extraction reports what ExtractTasks created and how many items it dropped.
type Extraction struct {
	Tasks   []*calendar.Task `json:"tasks"`
	Skipped int              `json:"skipped"`
}

type Service struct {
	gen      Generator
	calendar *calendar.Service
}

// NewService accepts a nil generator; every call then fails with ErrDisabled.
func NewService(gen Generator, cal *calendar.Service) *Service {
	return &Service{gen: gen, calendar: cal}
}

func (s *Service) Enabled() bool { return s.gen != nil }

func record(op string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	metrics.AssistantRequests.WithLabelValues(op, outcome).Inc()
}

func (s *Service) Chat(ctx context.Context, history []Turn, message string) (string, error) {
	if s.gen == nil {
		return "", ErrDisabled
	}
	message = strings.TrimSpace(message)
	if message == "" {
		return "", httpx.Invalidf("message is required")
	}
	if len(history) > maxHistory {
		history = history[len(history)-maxHistory:]
	}
	reply, err := s.gen.Generate(ctx, chatSystem, history, message)
	record("chat", err)
	if err != nil {
		return "", fmt.Errorf("assistant chat: %w", err)
	}
	return reply, nil
}

// ExtractTasks asks the model for the tasks in text and stores the valid ones
// on the owner's calendar.
func (s *Service) ExtractTasks(ctx context.Context, tenant, owner, text string, now time.Time) (*Extraction, error) {
	if s.gen == nil {
		return nil, ErrDisabled
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, httpx.Invalidf("text is required")
	}
	prompt := fmt.Sprintf("Current time: %s\n\n%s", now.Format(time.RFC3339), text)
	var items []extracted
	err := s.gen.GenerateJSON(ctx, extractSystem, prompt, taskSchema, &items)
	record("extract", err)
	if err != nil {
		return nil, fmt.Errorf("assistant extract: %w", err)
	}

	out := &Extraction{Tasks: []*calendar.Task{}}
	for _, it := range items {
		t, ok := it.task()
		if !ok {
			out.Skipped++
			continue
		}
		created, err := s.calendar.Create(ctx, tenant, owner, t)
		if err != nil {
			logger.Warnf("assistant: skipping extracted task %q: %v", it.Title, err)
			out.Skipped++
			continue
		}
		out.Tasks = append(out.Tasks, created)
	}
	return out, nil
}

func (e extracted) task() (*calendar.Task, bool) {
	title := strings.TrimSpace(e.Title)
	if title == "" {
		return nil, false
	}
	start, err := time.Parse(time.RFC3339, e.Start)
	if err != nil {
		return nil, false
	}
	t := &calendar.Task{Title: title, Kind: calendar.KindTask, Start: start}
	if e.DurationMinutes < 0 {
		return nil, false
	}
	if e.DurationMinutes > 0 {
		t.End = start.Add(time.Duration(e.DurationMinutes) * time.Minute)
	}
	return t, true
}
