package module

// ActionDefinition describes one action type a module may propose.
type ActionDefinition struct {
	Type          string
	Risk          RiskTier
	Description   string
	DescriptionKa string
}

// Personality is the default assistant persona for a module.
type Personality struct {
	Name   string
	NameKa string
	Style  string
}

var catalog = map[Module][]ActionDefinition{
	General: {
		{Type: "analyze_data", Risk: RiskLow, Description: "Analyze business data", DescriptionKa: "ბიზნეს მონაცემების ანალიზი"},
		{Type: "generate_report", Risk: RiskLow, Description: "Generate a report", DescriptionKa: "ანგარიშის გენერაცია"},
		{Type: "coordinate_modules", Risk: RiskLow, Description: "Coordinate between modules", DescriptionKa: "მოდულებს შორის კოორდინაცია"},
	},
	Marketing: {
		{Type: "analyze_reviews", Risk: RiskLow, Description: "Analyze guest reviews", DescriptionKa: "რევიუების ანალიზი"},
		{Type: "draft_review_response", Risk: RiskLow, Description: "Draft a review response", DescriptionKa: "რევიუზე პასუხის მომზადება"},
		{Type: "post_review_response", Risk: RiskMedium, Description: "Post response to OTA", DescriptionKa: "პასუხის გამოქვეყნება OTA-ზე"},
		{Type: "generate_social_post", Risk: RiskLow, Description: "Generate social media post", DescriptionKa: "სოციალური პოსტის გენერაცია"},
		{Type: "publish_social_post", Risk: RiskHigh, Description: "Publish to social media", DescriptionKa: "სოციალურ მედიაზე გამოქვეყნება"},
		{Type: "create_ad_campaign", Risk: RiskHigh, Description: "Create advertising campaign", DescriptionKa: "სარეკლამო კამპანიის შექმნა"},
	},
	Reservations: {
		{Type: "check_availability", Risk: RiskLow, Description: "Check room availability", DescriptionKa: "ოთახის ხელმისაწვდომობის შემოწმება"},
		{Type: "suggest_price", Risk: RiskLow, Description: "Suggest optimal price", DescriptionKa: "ოპტიმალური ფასის შეთავაზება"},
		{Type: "update_price", Risk: RiskMedium, Description: "Update room price", DescriptionKa: "ოთახის ფასის განახლება"},
		{Type: "block_dates", Risk: RiskMedium, Description: "Block dates", DescriptionKa: "თარიღების დაბლოკვა"},
		{Type: "send_guest_message", Risk: RiskMedium, Description: "Send message to guest", DescriptionKa: "სტუმრისთვის შეტყობინების გაგზავნა"},
		{Type: "sync_calendars", Risk: RiskMedium, Description: "Sync OTA calendars", DescriptionKa: "OTA კალენდრების სინქრონიზაცია"},
	},
	Finance: {
		{Type: "generate_report", Risk: RiskLow, Description: "Generate financial report", DescriptionKa: "ფინანსური ანგარიშის გენერაცია"},
		{Type: "analyze_expenses", Risk: RiskLow, Description: "Analyze expenses", DescriptionKa: "ხარჯების ანალიზი"},
		{Type: "analyze_revenue", Risk: RiskLow, Description: "Analyze revenue", DescriptionKa: "შემოსავლის ანალიზი"},
		{Type: "forecast_revenue", Risk: RiskLow, Description: "Forecast future revenue", DescriptionKa: "შემოსავლის პროგნოზი"},
		{Type: "create_invoice", Risk: RiskMedium, Description: "Create invoice", DescriptionKa: "ინვოისის შექმნა"},
	},
	Logistics: {
		{Type: "check_inventory", Risk: RiskLow, Description: "Check inventory levels", DescriptionKa: "ინვენტარის შემოწმება"},
		{Type: "schedule_cleaning", Risk: RiskLow, Description: "Schedule cleaning", DescriptionKa: "დასუფთავების დაგეგმვა"},
		{Type: "assign_task", Risk: RiskMedium, Description: "Assign task to staff", DescriptionKa: "დავალების მინიჭება"},
		{Type: "check_maintenance", Risk: RiskLow, Description: "Check maintenance status", DescriptionKa: "ტექნიკური სტატუსის შემოწმება"},
		{Type: "order_supplies", Risk: RiskHigh, Description: "Order supplies", DescriptionKa: "მარაგების შეკვეთა"},
	},
}

var personalities = map[Module]Personality{
	General:      {Name: "OpsBot", NameKa: "ოფსბოტი", Style: "strategic and concise"},
	Marketing:    {Name: "OpsBot Marketing", NameKa: "ოფსბოტი მარკეტინგი", Style: "creative and data-driven"},
	Reservations: {Name: "OpsBot Reservations", NameKa: "ოფსბოტი ბრონირება", Style: "friendly and precise"},
	Finance:      {Name: "OpsBot Finance", NameKa: "ოფსბოტი ფინანსები", Style: "exact and numbers-first"},
	Logistics:    {Name: "OpsBot Logistics", NameKa: "ოფსბოტი ლოგისტიკა", Style: "practical and checklist-oriented"},
}

// Definitions returns the action catalog for m, or nil for unknown modules.
func Definitions(m Module) []ActionDefinition {
	defs, ok := catalog[m]
	if !ok {
		return nil
	}
	return append([]ActionDefinition(nil), defs...)
}

// Lookup finds actionType in m's catalog.
func Lookup(m Module, actionType string) (ActionDefinition, bool) {
	for _, def := range catalog[m] {
		if def.Type == actionType {
			return def, true
		}
	}
	return ActionDefinition{}, false
}

// Allows reports whether actionType is in m's catalog.
func Allows(m Module, actionType string) bool {
	_, ok := Lookup(m, actionType)
	return ok
}

// ActionTypes returns every distinct action type across all modules, in catalog order.
func ActionTypes() []string {
	seen := make(map[string]struct{})
	var types []string
	for _, m := range modules {
		for _, def := range catalog[m] {
			if _, ok := seen[def.Type]; ok {
				continue
			}
			seen[def.Type] = struct{}{}
			types = append(types, def.Type)
		}
	}
	return types
}

// DefaultPersonality returns the built-in persona for m.
func DefaultPersonality(m Module) Personality {
	return personalities[m]
}
