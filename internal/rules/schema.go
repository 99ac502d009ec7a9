package rules

// Schema describes the rule-building vocabulary for the UI: which tables can
// be queried, which operators the condition builder offers, the severity
// tiers, and the relative-date tokens accepted in values and expressions.
type Schema struct {
	DataSources    []DataSourceSchema `json:"dataSources"`
	Operators      []OperatorSchema   `json:"operators"`
	Severities     []SeveritySchema   `json:"severities"`
	RelativeTokens []TokenSchema      `json:"relativeTokens"`
}

type DataSourceSchema struct {
	Name  string `json:"name"`
	Label string `json:"label"`
}

type OperatorSchema struct {
	Name  string `json:"name"`
	Label string `json:"label"`
	// Unary operators take no value in the condition builder.
	Unary bool `json:"unary,omitempty"`
}

type SeveritySchema struct {
	Name  Severity `json:"name"`
	Label string   `json:"label"`
}

type TokenSchema struct {
	Token string `json:"token"`
	Label string `json:"label"`
}

// GetSchema returns the static rule-building schema. Live column metadata
// comes from the query engine, not from here.
func GetSchema() Schema {
	return Schema{
		DataSources: []DataSourceSchema{
			{Name: DataSourceOrderLines, Label: "Order Lines"},
			{Name: DataSourceRoutePlans, Label: "Route Plans"},
			{Name: DataSourceOnhand, Label: "Onhand Inventory"},
		},
		Operators: []OperatorSchema{
			{Name: OperatorEquals, Label: "equals"},
			{Name: OperatorNotEquals, Label: "does not equal"},
			{Name: OperatorGreaterThan, Label: "greater than"},
			{Name: OperatorLessThan, Label: "less than"},
			{Name: OperatorGreaterOrEq, Label: "greater than or equal"},
			{Name: OperatorLessOrEq, Label: "less than or equal"},
			{Name: OperatorLike, Label: "contains"},
			{Name: OperatorIsNull, Label: "is empty", Unary: true},
			{Name: OperatorIsNotNull, Label: "is not empty", Unary: true},
		},
		Severities: []SeveritySchema{
			{Name: SeverityCritical, Label: "Critical"},
			{Name: SeverityWarning, Label: "Warning"},
			{Name: SeverityInfo, Label: "Info"},
		},
		RelativeTokens: []TokenSchema{
			{Token: "@TODAY", Label: "Today"},
			{Token: "@TOMORROW", Label: "Tomorrow"},
			{Token: "@YESTERDAY", Label: "Yesterday"},
			{Token: "@TODAY+N", Label: "N days from today"},
			{Token: "@TODAY-N", Label: "N days before today"},
		},
	}
}
