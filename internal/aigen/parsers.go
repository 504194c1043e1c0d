package aigen

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/evobug-com/story-server/internal/models"
)

// Схемы слоев, которые возвращает модель. Компактные ключи — намеренно:
// см. prompts.go.

type layerOption struct {
	Label       string  `json:"lbl" validate:"required,max=120"`
	Description string  `json:"desc" validate:"max=300"`
	Coins       int     `json:"coins" validate:"gte=-1000,lte=1000"`
	Risk        float64 `json:"risk" validate:"gte=0,lte=5"`
}

type layerDecision struct {
	Text string       `json:"txt" validate:"required"`
	X    *layerOption `json:"x" validate:"required"`
	Y    *layerOption `json:"y" validate:"required"`
}

type firstLayer struct {
	Title    string         `json:"t" validate:"required,max=120"`
	Marker   string         `json:"m"`
	Intro    string         `json:"intro" validate:"required"`
	Decision *layerDecision `json:"d" validate:"required"`
}

type layerBranch struct {
	Ending   bool           `json:"end"`
	Text     string         `json:"txt" validate:"required"`
	Coins    int            `json:"coins" validate:"gte=-5000,lte=5000"`
	Positive bool           `json:"pos"`
	XP       float64        `json:"xp" validate:"gte=0,lte=5"`
	Decision *layerDecision `json:"d"`
}

type continuationLayer struct {
	Outcome string       `json:"out" validate:"required"`
	Chance  int          `json:"chance" validate:"gte=0,lte=100"`
	Win     *layerBranch `json:"win" validate:"required"`
	Lose    *layerBranch `json:"lose" validate:"required"`
}

// extractJSON срезает возможную markdown-обертку вокруг JSON. Модели
// периодически игнорируют "no markdown" в промпте.
func extractJSON(raw string) string {
	raw = strings.TrimSpace(raw)
	if start := strings.Index(raw, "{"); start >= 0 {
		if end := strings.LastIndex(raw, "}"); end > start {
			return raw[start : end+1]
		}
	}
	return raw
}

func parseFirstLayer(validate *validator.Validate, raw string) (*firstLayer, error) {
	var layer firstLayer
	if err := json.Unmarshal([]byte(extractJSON(raw)), &layer); err != nil {
		return nil, fmt.Errorf("%w: malformed first layer JSON: %v", models.ErrGenerationFailed, err)
	}
	if err := validate.Struct(&layer); err != nil {
		return nil, fmt.Errorf("%w: first layer failed validation: %v", models.ErrGenerationFailed, err)
	}
	return &layer, nil
}

func parseContinuationLayer(validate *validator.Validate, raw string, forceEnding bool) (*continuationLayer, error) {
	var layer continuationLayer
	if err := json.Unmarshal([]byte(extractJSON(raw)), &layer); err != nil {
		return nil, fmt.Errorf("%w: malformed continuation JSON: %v", models.ErrGenerationFailed, err)
	}
	if err := validate.Struct(&layer); err != nil {
		return nil, fmt.Errorf("%w: continuation failed validation: %v", models.ErrGenerationFailed, err)
	}
	for name, branch := range map[string]*layerBranch{"win": layer.Win, "lose": layer.Lose} {
		if err := validateBranch(validate, name, branch, forceEnding); err != nil {
			return nil, err
		}
	}
	return &layer, nil
}

func validateBranch(validate *validator.Validate, name string, branch *layerBranch, forceEnding bool) error {
	if branch.Ending {
		if branch.XP <= 0 {
			branch.XP = 1.0
		}
		return nil
	}
	if forceEnding {
		return fmt.Errorf("%w: branch %q must be an ending at depth limit", models.ErrGenerationFailed, name)
	}
	if branch.Decision == nil {
		return fmt.Errorf("%w: non-ending branch %q is missing a decision", models.ErrGenerationFailed, name)
	}
	if err := validate.Struct(branch.Decision); err != nil {
		return fmt.Errorf("%w: branch %q decision failed validation: %v", models.ErrGenerationFailed, name, err)
	}
	return nil
}
