package generation

func echoBloom(r Request) any    { return r.BloomLevel }
func echoDuration(r Request) any { return r.DurationMinutes }

func bloomField() Field {
	return Field{Key: "bloom_level", Type: FieldEnum, Values: BloomLevels, Echo: echoBloom,
		Hint: "cognitive level targeted by the artifact"}
}

func init() {
	Register(Schema{
		Kind:        KindStrategy,
		Description: "a teaching strategy for a single lesson",
		TitleKey:    "strategy_name",
		Fields: []Field{
			{Key: "strategy_name", Type: FieldText, Hint: "short name of the strategy"},
			{Key: "summary", Type: FieldText, Hint: "two or three sentences"},
			{Key: "goals", Type: FieldStringList, Hint: "measurable learning goals"},
			{Key: "steps", Type: FieldStringList, Hint: "ordered classroom steps"},
			{Key: "materials", Type: FieldStringList, Hint: "materials needed"},
			{Key: "assessment", Type: FieldText, Hint: "how learning is checked"},
			{Key: "differentiation", Type: FieldStringList, Hint: "adaptations for different learners"},
			bloomField(),
			{Key: "duration_minutes", Type: FieldInteger, Min: minDuration, Max: maxDuration, Echo: echoDuration},
		},
	})

	Register(Schema{
		Kind:        KindWeeklyPlan,
		Description: "a five-day weekly lesson plan",
		TitleKey:    "plan_title",
		Fields: []Field{
			{Key: "plan_title", Type: FieldText},
			{Key: "objectives", Type: FieldStringList, Hint: "weekly objectives"},
			{Key: "days", Type: FieldObjectList, Hint: "one entry per school day", Items: []Field{
				{Key: "day", Type: FieldText},
				{Key: "focus", Type: FieldText},
				{Key: "activities", Type: FieldStringList},
				{Key: "homework", Type: FieldText},
			}},
			{Key: "assessment", Type: FieldText},
			{Key: "notes", Type: FieldText},
			bloomField(),
		},
	})

	Register(Schema{
		Kind:        KindActivitySet,
		Description: "a set of classroom activities",
		TitleKey:    "set_title",
		Fields: []Field{
			{Key: "set_title", Type: FieldText},
			{Key: "activities", Type: FieldObjectList, Hint: "item_count activities", Items: []Field{
				{Key: "name", Type: FieldText},
				{Key: "instructions", Type: FieldText},
				{Key: "grouping", Type: FieldText, Hint: "individual, pairs or groups"},
				{Key: "duration_minutes", Type: FieldInteger, Min: 1, Max: maxDuration, Echo: func(Request) any { return 10 }},
			}},
			{Key: "materials", Type: FieldStringList},
			bloomField(),
		},
	})

	Register(Schema{
		Kind:        KindEnrichmentCard,
		Description: "an enrichment card extending the lesson topic",
		TitleKey:    "card_title",
		Fields: []Field{
			{Key: "card_title", Type: FieldText},
			{Key: "hook", Type: FieldText, Hint: "one attention-grabbing sentence"},
			{Key: "facts", Type: FieldStringList},
			{Key: "questions", Type: FieldStringList, Hint: "open questions for discussion"},
			{Key: "resources", Type: FieldStringList},
			bloomField(),
		},
	})
}
