package autoflow

import (
	"encoding/json"
	"fmt"
)

// StepType identifies the capability a step invokes
type StepType string

const (
	StepTypeAIAnalysis     StepType = "ai_analysis"
	StepTypeDataExtraction StepType = "data_extraction"
	StepTypeNotification   StepType = "notification"
	StepTypeAPICall        StepType = "api_call"
	StepTypeDatabaseUpdate StepType = "database_update"
	StepTypeAIGeneration   StepType = "ai_generation"
	StepTypeScheduling     StepType = "scheduling"
	StepTypeIntegration    StepType = "integration"
)

// String returns the string representation
func (t StepType) String() string {
	return string(t)
}

// StepConfig is the closed set of per-type step configurations.
// Each variant knows its step type and validates its own required fields,
// so a config/type mismatch is caught at definition time.
type StepConfig interface {
	StepType() StepType
	Validate() error
}

// AIAnalysisConfig configures an ai_analysis step
type AIAnalysisConfig struct {
	Model     string   `json:"model"`
	Prompt    string   `json:"prompt"`
	InputKeys []string `json:"inputKeys,omitempty"`
	OutputKey string   `json:"outputKey,omitempty"`
}

func (c *AIAnalysisConfig) StepType() StepType { return StepTypeAIAnalysis }

func (c *AIAnalysisConfig) Validate() error {
	if c.Model == "" {
		return fmt.Errorf("ai_analysis config requires model")
	}
	if c.Prompt == "" {
		return fmt.Errorf("ai_analysis config requires prompt")
	}
	return nil
}

// DataExtractionConfig configures a data_extraction step
type DataExtractionConfig struct {
	Source    string   `json:"source"`
	Fields    []string `json:"fields"`
	OutputKey string   `json:"outputKey,omitempty"`
}

func (c *DataExtractionConfig) StepType() StepType { return StepTypeDataExtraction }

func (c *DataExtractionConfig) Validate() error {
	if c.Source == "" {
		return fmt.Errorf("data_extraction config requires source")
	}
	if len(c.Fields) == 0 {
		return fmt.Errorf("data_extraction config requires at least one field")
	}
	return nil
}

// NotificationConfig configures a notification step
type NotificationConfig struct {
	Channel   string `json:"channel"` // email, sms, push
	Recipient string `json:"recipient"`
	Template  string `json:"template,omitempty"`
}

func (c *NotificationConfig) StepType() StepType { return StepTypeNotification }

func (c *NotificationConfig) Validate() error {
	if c.Channel == "" {
		return fmt.Errorf("notification config requires channel")
	}
	if c.Recipient == "" {
		return fmt.Errorf("notification config requires recipient")
	}
	return nil
}

// APICallConfig configures an api_call step
type APICallConfig struct {
	Method  string            `json:"method"`
	URL     string            `json:"url"`
	Headers map[string]string `json:"headers,omitempty"`
	BodyKey string            `json:"bodyKey,omitempty"` // context key holding the request body
}

func (c *APICallConfig) StepType() StepType { return StepTypeAPICall }

func (c *APICallConfig) Validate() error {
	if c.Method == "" {
		return fmt.Errorf("api_call config requires method")
	}
	if c.URL == "" {
		return fmt.Errorf("api_call config requires url")
	}
	return nil
}

// DatabaseUpdateConfig configures a database_update step
type DatabaseUpdateConfig struct {
	Collection string `json:"collection"`
	Operation  string `json:"operation"` // insert, update, upsert, delete
	DataKey    string `json:"dataKey,omitempty"`
}

func (c *DatabaseUpdateConfig) StepType() StepType { return StepTypeDatabaseUpdate }

func (c *DatabaseUpdateConfig) Validate() error {
	if c.Collection == "" {
		return fmt.Errorf("database_update config requires collection")
	}
	switch c.Operation {
	case "insert", "update", "upsert", "delete":
		return nil
	case "":
		return fmt.Errorf("database_update config requires operation")
	default:
		return fmt.Errorf("database_update config has unknown operation %q", c.Operation)
	}
}

// AIGenerationConfig configures an ai_generation step
type AIGenerationConfig struct {
	Model     string `json:"model"`
	Prompt    string `json:"prompt"`
	MaxTokens int    `json:"maxTokens,omitempty"`
	OutputKey string `json:"outputKey,omitempty"`
}

func (c *AIGenerationConfig) StepType() StepType { return StepTypeAIGeneration }

func (c *AIGenerationConfig) Validate() error {
	if c.Model == "" {
		return fmt.Errorf("ai_generation config requires model")
	}
	if c.Prompt == "" {
		return fmt.Errorf("ai_generation config requires prompt")
	}
	return nil
}

// SchedulingConfig configures a scheduling step
type SchedulingConfig struct {
	CalendarID      string `json:"calendarId"`
	DurationMinutes int    `json:"durationMinutes"`
	AttendeesKey    string `json:"attendeesKey,omitempty"`
}

func (c *SchedulingConfig) StepType() StepType { return StepTypeScheduling }

func (c *SchedulingConfig) Validate() error {
	if c.CalendarID == "" {
		return fmt.Errorf("scheduling config requires calendarId")
	}
	if c.DurationMinutes <= 0 {
		return fmt.Errorf("scheduling config requires a positive durationMinutes")
	}
	return nil
}

// IntegrationConfig configures an integration step
type IntegrationConfig struct {
	Provider string         `json:"provider"`
	Action   string         `json:"action"`
	Params   map[string]any `json:"params,omitempty"`
}

func (c *IntegrationConfig) StepType() StepType { return StepTypeIntegration }

func (c *IntegrationConfig) Validate() error {
	if c.Provider == "" {
		return fmt.Errorf("integration config requires provider")
	}
	if c.Action == "" {
		return fmt.Errorf("integration config requires action")
	}
	return nil
}

// decodeStepConfig decodes the config variant matching the given step type.
// Unknown step types are rejected here, which keeps them out of execution entirely.
func decodeStepConfig(t StepType, raw json.RawMessage) (StepConfig, error) {
	var cfg StepConfig
	switch t {
	case StepTypeAIAnalysis:
		cfg = &AIAnalysisConfig{}
	case StepTypeDataExtraction:
		cfg = &DataExtractionConfig{}
	case StepTypeNotification:
		cfg = &NotificationConfig{}
	case StepTypeAPICall:
		cfg = &APICallConfig{}
	case StepTypeDatabaseUpdate:
		cfg = &DatabaseUpdateConfig{}
	case StepTypeAIGeneration:
		cfg = &AIGenerationConfig{}
	case StepTypeScheduling:
		cfg = &SchedulingConfig{}
	case StepTypeIntegration:
		cfg = &IntegrationConfig{}
	default:
		return nil, fmt.Errorf("unknown step type %q", t)
	}

	if len(raw) > 0 {
		if err := json.Unmarshal(raw, cfg); err != nil {
			return nil, fmt.Errorf("failed to decode %s config: %w", t, err)
		}
	}

	return cfg, nil
}
