package service

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode"

	"go.uber.org/zap"

	"promptfabric/internal/domain"
	"promptfabric/internal/llm"
)

const (
	IssueEmptyResponse          = "empty_response"
	IssuePotentialHallucination = "potential_hallucination"
	IssueResponseTooShort       = "response_too_short"
	IssueLLMValidationFailed    = "llm_validation_failed"
	issueValidationErrorTag     = "validation_error:"

	minResponseLength    = 10
	validatorTimeout     = 30 * time.Second
	validatorMaxTokens   = 10
	validatorTemperature = 0.1
)

var hallucinationPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)^I don't know because`),
	regexp.MustCompile(`(?i)^As of my knowledge cutoff`),
	regexp.MustCompile(`(?i)^This information might be outdated`),
}

// PostProcessor valida y da formato a la respuesta generada.
type PostProcessor struct {
	gateway        llm.Gateway
	enabled        bool
	validatorModel string
	generatorModel string
	logger         *zap.Logger
}

func NewPostProcessor(gateway llm.Gateway, enabled bool, validatorModel, generatorModel string, logger *zap.Logger) *PostProcessor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PostProcessor{
		gateway:        gateway,
		enabled:        enabled,
		validatorModel: strings.TrimSpace(validatorModel),
		generatorModel: strings.TrimSpace(generatorModel),
		logger:         logger,
	}
}

// Process aplica validacion basica, formato y, si corresponde, validacion con modelo.
// Las fallas del validador no bloquean: se registran en issues.
func (p *PostProcessor) Process(ctx context.Context, response, originalPrompt, contextText string) domain.ValidationOutcome {
	if p == nil || !p.enabled {
		return domain.ValidationOutcome{Response: response, Valid: true, Issues: []string{}, Validated: false}
	}

	issues := basicValidation(response)
	basicPassed := len(issues) == 0
	formatted := formatResponse(response)

	modelPassed := true
	if p.modelValidationEnabled() {
		passed, err := p.validateWithModel(ctx, formatted, originalPrompt, contextText)
		switch {
		case err != nil:
			verr := &domain.ValidationError{Err: err}
			p.logger.Warn("response validation failed open", zap.Error(verr))
			issues = append(issues, issueValidationErrorTag+err.Error())
		case !passed:
			modelPassed = false
			issues = append(issues, IssueLLMValidationFailed)
		}
	}

	return domain.ValidationOutcome{
		Response:  formatted,
		Valid:     basicPassed && modelPassed,
		Issues:    issues,
		Validated: true,
	}
}

func (p *PostProcessor) modelValidationEnabled() bool {
	return p.gateway != nil && p.validatorModel != "" && p.validatorModel != p.generatorModel
}

func (p *PostProcessor) validateWithModel(ctx context.Context, response, originalPrompt, contextText string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, validatorTimeout)
	defer cancel()

	out, err := p.gateway.Generate(ctx, llm.GenerateRequest{
		Prompt:      buildValidationPrompt(response, originalPrompt, contextText),
		Model:       p.validatorModel,
		Temperature: llm.Float64(validatorTemperature),
		MaxTokens:   validatorMaxTokens,
	})
	if err != nil {
		return false, err
	}
	return judgedValid(out), nil
}

func basicValidation(response string) []string {
	issues := []string{}
	if strings.TrimSpace(response) == "" {
		issues = append(issues, IssueEmptyResponse)
	}
	for _, re := range hallucinationPatterns {
		if re.MatchString(response) {
			issues = append(issues, IssuePotentialHallucination)
		}
	}
	if len(response) < minResponseLength {
		issues = append(issues, IssueResponseTooShort)
	}
	return issues
}

// judgedValid exige la palabra VALID y rechaza INVALID (que la contiene como subcadena).
func judgedValid(answer string) bool {
	words := strings.FieldsFunc(strings.ToUpper(answer), func(r rune) bool {
		return !unicode.IsLetter(r)
	})
	valid := false
	for _, w := range words {
		switch w {
		case "INVALID":
			return false
		case "VALID":
			valid = true
		}
	}
	return valid
}

func buildValidationPrompt(response, originalPrompt, contextText string) string {
	ctxBlock := contextText
	if strings.TrimSpace(ctxBlock) == "" {
		ctxBlock = "No additional context"
	}
	return fmt.Sprintf(`You are a response validator. Your task is to check if the response is accurate and relevant to the user's prompt.

User's original prompt: %s

Context provided:
%s

Response to validate:
%s

Evaluate the response and respond with ONLY one word:
- "VALID" if the response is accurate, relevant, and helpful
- "INVALID" if the response is inaccurate, irrelevant, or contains hallucinations

Response:`, originalPrompt, ctxBlock, response)
}
