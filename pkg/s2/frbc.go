package s2

import "time"

type FRBCOperationModeElement struct {
	FillLevelRange NumberRange  `json:"fill_level_range"`
	FillRate       NumberRange  `json:"fill_rate"`
	PowerRanges    []PowerRange `json:"power_ranges"`
	RunningCosts   *NumberRange `json:"running_costs,omitempty"`
}

type FRBCOperationMode struct {
	ID                    ID                         `json:"id"`
	DiagnosticLabel       *string                    `json:"diagnostic_label,omitempty"`
	Elements              []FRBCOperationModeElement `json:"elements"`
	AbnormalConditionOnly bool                       `json:"abnormal_condition_only"`
}

type FRBCActuatorDescription struct {
	ID                   ID                  `json:"id"`
	DiagnosticLabel      *string             `json:"diagnostic_label,omitempty"`
	SupportedCommodities []Commodity         `json:"supported_commodities"`
	OperationModes       []FRBCOperationMode `json:"operation_modes"`
	Transitions          []Transition        `json:"transitions"`
	Timers               []Timer             `json:"timers"`
}

type FRBCStorageDescription struct {
	DiagnosticLabel                *string     `json:"diagnostic_label,omitempty"`
	FillLevelLabel                 *string     `json:"fill_level_label,omitempty"`
	ProvidesLeakageBehaviour       bool        `json:"provides_leakage_behaviour"`
	ProvidesFillLevelTargetProfile bool        `json:"provides_fill_level_target_profile"`
	ProvidesUsageForecast          bool        `json:"provides_usage_forecast"`
	FillLevelRange                 NumberRange `json:"fill_level_range"`
}

type FRBCSystemDescription struct {
	Header
	ValidFrom time.Time                 `json:"valid_from"`
	Actuators []FRBCActuatorDescription `json:"actuators"`
	Storage   FRBCStorageDescription    `json:"storage"`
}

func (*FRBCSystemDescription) Type() MessageType { return TypeFRBCSystemDescription }

type FRBCInstruction struct {
	Header
	InstructionID       ID        `json:"id"`
	ActuatorID          ID        `json:"actuator_id"`
	OperationMode       ID        `json:"operation_mode"`
	OperationModeFactor float64   `json:"operation_mode_factor"`
	ExecutionTime       time.Time `json:"execution_time"`
	AbnormalCondition   bool      `json:"abnormal_condition"`
}

func (*FRBCInstruction) Type() MessageType { return TypeFRBCInstruction }

type FRBCStorageStatus struct {
	Header
	PresentFillLevel float64 `json:"present_fill_level"`
}

func (*FRBCStorageStatus) Type() MessageType { return TypeFRBCStorageStatus }

type FRBCActuatorStatus struct {
	Header
	ActuatorID              ID         `json:"actuator_id"`
	ActiveOperationModeID   ID         `json:"active_operation_mode_id"`
	OperationModeFactor     float64    `json:"operation_mode_factor"`
	PreviousOperationModeID *ID        `json:"previous_operation_mode_id,omitempty"`
	TransitionTimestamp     *time.Time `json:"transition_timestamp,omitempty"`
}

func (*FRBCActuatorStatus) Type() MessageType { return TypeFRBCActuatorStatus }

type FRBCLeakageBehaviourElement struct {
	FillLevelRange NumberRange `json:"fill_level_range"`
	LeakageRate    float64     `json:"leakage_rate"`
}

type FRBCLeakageBehaviour struct {
	Header
	ValidFrom time.Time                     `json:"valid_from"`
	Elements  []FRBCLeakageBehaviourElement `json:"elements"`
}

func (*FRBCLeakageBehaviour) Type() MessageType { return TypeFRBCLeakageBehaviour }

type FRBCUsageForecastElement struct {
	Duration            Duration `json:"duration"`
	UsageRateUpperLimit *float64 `json:"usage_rate_upper_limit,omitempty"`
	UsageRateExpected   float64  `json:"usage_rate_expected"`
	UsageRateLowerLimit *float64 `json:"usage_rate_lower_limit,omitempty"`
}

type FRBCUsageForecast struct {
	Header
	StartTime time.Time                  `json:"start_time"`
	Elements  []FRBCUsageForecastElement `json:"elements"`
}

func (*FRBCUsageForecast) Type() MessageType { return TypeFRBCUsageForecast }
