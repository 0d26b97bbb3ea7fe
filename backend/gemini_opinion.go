package backend

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"time"

	"legaljudge-backend/config"
	"legaljudge-backend/models"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// contentGenerator is the part of *genai.GenerativeModel the adapter uses
type contentGenerator interface {
	GenerateContent(ctx context.Context, parts ...genai.Part) (*genai.GenerateContentResponse, error)
}

// GeminiOpinionClient drafts opinions directly with a Gemini model
type GeminiOpinionClient struct {
	client      *genai.Client
	model       contentGenerator
	modelName   string
	temperature float32
	timeout     time.Duration
	transport   *Transport
}

// NewGeminiOpinionClient connects to Gemini with the configured API key.
// The transport supplies the retry policy; timeout bounds each attempt.
func NewGeminiOpinionClient(ctx context.Context, t *Transport, cfg config.OpinionConfig, timeout time.Duration) (*GeminiOpinionClient, error) {
	if cfg.GeminiAPIKey == "" {
		return nil, errors.New("GEMINI_API_KEY environment variable is required")
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(cfg.GeminiAPIKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	model := client.GenerativeModel(cfg.GeminiModel)
	model.SetTemperature(cfg.SamplingTemperature())
	model.SystemInstruction = genai.NewUserContent(genai.Text(
		"You are a Supreme Court justice writing formal judicial opinions.",
	))

	return &GeminiOpinionClient{
		client:      client,
		model:       model,
		modelName:   cfg.GeminiModel,
		temperature: cfg.SamplingTemperature(),
		timeout:     timeout,
		transport:   t,
	}, nil
}

// Close releases the underlying Gemini client
func (c *GeminiOpinionClient) Close() error {
	if c.client == nil {
		return nil
	}
	return c.client.Close()
}

// Synthesize drafts an opinion from the case context and the precedents
// carried on the request.
func (c *GeminiOpinionClient) Synthesize(ctx context.Context, req models.OpinionRequest) (models.GeneratedOpinion, error) {
	req.ApplyDefaults()
	if err := req.Validate(); err != nil {
		return models.GeneratedOpinion{}, Rejected(opinionBackend, err)
	}

	precedents := req.Precedents
	if len(precedents) > req.MaxPrecedents {
		precedents = precedents[:req.MaxPrecedents]
	}
	prompt := buildOpinionPrompt(req.CaseContext, precedents, req.OpinionType, req.PredictedOutcome)

	var text string
	err := c.transport.Retry(ctx, opinionBackend, func(ctx context.Context) error {
		var err error
		text, err = c.generate(ctx, prompt)
		return err
	})
	if err != nil {
		return models.GeneratedOpinion{}, err
	}

	opinion := models.GeneratedOpinion{
		FullText:        withOpinionHeader(text, req.CaseContext, req.OpinionType),
		Sections:        parseOpinionSections(text),
		CitedPrecedents: citedPrecedents(text, precedents),
		GenerationMetadata: map[string]any{
			"provider":        config.OpinionProviderGemini,
			"model":           c.modelName,
			"temperature":     c.temperature,
			"precedents_used": len(precedents),
			"opinion_type":    string(req.OpinionType),
		},
	}
	return opinion.WithDisclaimer(), nil
}

func (c *GeminiOpinionClient) generate(ctx context.Context, prompt string) (string, error) {
	callCtx := ctx
	if c.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	resp, err := c.model.GenerateContent(callCtx, genai.Text(prompt))
	if err != nil {
		return "", classifyGemini(ctx, err)
	}
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", Malformed(opinionBackend, errors.New("no response candidates"))
	}

	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			b.WriteString(string(txt))
		}
	}
	text := strings.TrimSpace(b.String())
	if text == "" {
		return "", Malformed(opinionBackend, errors.New("candidate has no text"))
	}
	return text, nil
}

// classifyGemini maps a Gemini client error onto the backend taxonomy
func classifyGemini(parent context.Context, err error) error {
	if errors.Is(parent.Err(), context.Canceled) {
		return fmt.Errorf("%s: %w", opinionBackend, parent.Err())
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return newError(opinionBackend, KindTimeout, err)
	}

	var blocked *genai.BlockedError
	if errors.As(err, &blocked) {
		return Rejected(opinionBackend, err)
	}

	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		return classifyStatus(opinionBackend, gerr.Code, gerr.Message)
	}

	if st, ok := status.FromError(err); ok && st.Code() != codes.Unknown {
		switch st.Code() {
		case codes.DeadlineExceeded:
			return &Error{Backend: opinionBackend, Kind: KindTimeout, StatusCode: http.StatusGatewayTimeout, Err: err}
		case codes.Unavailable, codes.ResourceExhausted, codes.Internal, codes.Aborted:
			return newError(opinionBackend, KindUnavailable, err)
		default:
			return Rejected(opinionBackend, err)
		}
	}

	return newError(opinionBackend, KindUnavailable, err)
}

func buildOpinionPrompt(cc models.CaseContext, precedents []string, opinionType models.OpinionType, predicted string) string {
	var b strings.Builder

	fmt.Fprintf(&b, "You are a Supreme Court justice drafting a %s opinion.\n\n", opinionTitle(opinionType))
	fmt.Fprintf(&b, "CASE: %s\n", caseName(cc))
	if cc.CaseNumber != "" {
		fmt.Fprintf(&b, "CASE NUMBER: %s\n", cc.CaseNumber)
	}
	if cc.LowerCourt != "" {
		fmt.Fprintf(&b, "LOWER COURT: %s\n", cc.LowerCourt)
	}
	fmt.Fprintf(&b, "\nFACTS:\n%s\n\nLEGAL ISSUE:\n%s\n", cc.Facts, cc.Issue)
	if cc.ProceduralHistory != nil && *cc.ProceduralHistory != "" {
		fmt.Fprintf(&b, "\nPROCEDURAL HISTORY:\n%s\n", *cc.ProceduralHistory)
	}

	b.WriteString("\nRELEVANT PRECEDENTS:\n")
	if len(precedents) == 0 {
		b.WriteString("None retrieved.\n")
	}
	for i, p := range precedents {
		fmt.Fprintf(&b, "%d. %s\n", i+1, p)
	}
	if predicted != "" {
		fmt.Fprintf(&b, "\nPREDICTED OUTCOME: %s\n", predicted)
	}

	b.WriteString(`
INSTRUCTIONS:
1. Write in formal judicial tone using institutional voice
2. Use these sections, each heading on its own line:
   I. PROCEDURAL HISTORY
   II. STATEMENT OF FACTS
   III. LEGAL ISSUE
   IV. REASONING
   V. HOLDING
   VI. JUDGMENT
3. Cite precedents as [Case Name] ([Year])
4. Conclude with "It is so ordered."
5. Do NOT include individual justice names

Generate the complete opinion now:`)
	return b.String()
}

func opinionTitle(t models.OpinionType) string {
	words := strings.Split(string(t), "_")
	for i, w := range words {
		if w != "" {
			words[i] = strings.ToUpper(w[:1]) + w[1:]
		}
	}
	return strings.Join(words, " ")
}

func caseName(cc models.CaseContext) string {
	petitioner, respondent := cc.Petitioner, cc.Respondent
	if petitioner == "" {
		petitioner = "Petitioner"
	}
	if respondent == "" {
		respondent = "Respondent"
	}
	return petitioner + " v. " + respondent
}

func withOpinionHeader(text string, cc models.CaseContext, t models.OpinionType) string {
	if strings.Contains(strings.ToUpper(text), "SUPREME COURT") {
		return text
	}
	number := cc.CaseNumber
	if number == "" {
		number = "No. XX-XXXX"
	}
	header := fmt.Sprintf("SUPREME COURT OF THE UNITED STATES\n\n%s\n\n%s\n\n%s\n\n",
		number, caseName(cc), strings.ToUpper(strings.ReplaceAll(string(t), "_", " ")))
	return header + text
}

var (
	sectionHeading = regexp.MustCompile(`(?im)^[ \t]*(?:[IVX]+\.[ \t]*)?(PROCEDURAL HISTORY|STATEMENT OF FACTS|LEGAL ISSUE|REASONING|HOLDING|JUDGMENT)[ \t]*:?[ \t]*$`)
	soOrdered      = regexp.MustCompile(`(?i)it is so ordered`)
)

var sectionKeys = map[string]string{
	"PROCEDURAL HISTORY": "procedural_history",
	"STATEMENT OF FACTS": "facts",
	"LEGAL ISSUE":        "issue",
	"REASONING":          "reasoning",
	"HOLDING":            "holding",
	"JUDGMENT":           "judgment",
}

// parseOpinionSections splits the drafted text on its section headings.
// Every section key is present; missing sections are empty.
func parseOpinionSections(text string) map[string]string {
	sections := make(map[string]string, len(sectionKeys))
	for _, key := range sectionKeys {
		sections[key] = ""
	}

	matches := sectionHeading.FindAllStringSubmatchIndex(text, -1)
	for i, m := range matches {
		end := len(text)
		if i+1 < len(matches) {
			end = matches[i+1][0]
		}
		key := sectionKeys[strings.ToUpper(text[m[2]:m[3]])]
		body := text[m[1]:end]
		if key == "judgment" {
			if loc := soOrdered.FindStringIndex(body); loc != nil {
				body = body[:loc[0]]
			}
		}
		if sections[key] == "" {
			sections[key] = strings.TrimSpace(body)
		}
	}
	return sections
}

// citedPrecedents returns the precedents whose names appear in the text
func citedPrecedents(text string, precedents []string) []string {
	cited := []string{}
	for _, p := range precedents {
		if p != "" && strings.Contains(text, p) {
			cited = append(cited, p)
		}
	}
	return cited
}
