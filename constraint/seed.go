package constraint

// Characters that collide with the file format's delimiter hierarchy.
// They are stripped out of every persisted field by replacement with _.
var delimiterRunes = []rune{';', '>', '%', '#', '§', '|', '=', '&'}

func idProperty(name string) ConstraintProperty {
	return ConstraintProperty{
		PropertyName:      name,
		IsAlphabetic:      true,
		IsNumeric:         true,
		Min:               1,
		Max:               100,
		AdditionalAllowed: []rune{'_', '-'},
	}
}

func nameProperty(name string, max int) ConstraintProperty {
	return ConstraintProperty{
		PropertyName:      name,
		IsAlphabetic:      true,
		IsNumeric:         true,
		Min:               1,
		Max:               max,
		AdditionalAllowed: []rune{' ', '_', '-'},
	}
}

func textProperty(name string, min, max int) ConstraintProperty {
	return ConstraintProperty{
		PropertyName: name,
		Min:          min,
		Max:          max,
		NotAllowed:   delimiterRunes,
	}
}

// Seed builds the startup catalog with a row for every persisted
// entity class and one per flow block kind.
func Seed() *Catalog {
	rows := []Constraint{
		{ComponentName: "project", Properties: []ConstraintProperty{
			idProperty("id"),
			nameProperty("name", 100),
			textProperty("description", 0, 400),
			{
				PropertyName: "api_path", IsAlphabetic: true, IsNumeric: true,
				Min: 1, Max: 200, AdditionalAllowed: []rune{'_', '-', '/'},
			},
		}},
		{ComponentName: "collection", Properties: []ConstraintProperty{
			idProperty("id"),
			idProperty("project_id"),
			nameProperty("name", 100),
			textProperty("description", 0, 400),
		}},
		{ComponentName: "structure", Properties: []ConstraintProperty{
			idProperty("id"),
			nameProperty("name", 100),
			textProperty("description", 0, 400),
			textProperty("default", 0, 99999),
			textProperty("regex_pattern", 0, 1000),
		}},
		{ComponentName: "custom_structure", Properties: []ConstraintProperty{
			idProperty("id"),
			nameProperty("name", 100),
			textProperty("description", 0, 400),
		}},
		{ComponentName: "data", Properties: []ConstraintProperty{
			idProperty("id"),
			idProperty("project_id"),
			idProperty("collection_id"),
		}},
		{ComponentName: "datapair", Properties: []ConstraintProperty{
			idProperty("id"),
			idProperty("structure_id"),
			{
				PropertyName: "custom_structure_id", IsAlphabetic: true,
				IsNumeric: true, Min: 0, Max: 100,
				AdditionalAllowed: []rune{'_', '-'},
			},
			nameProperty("dtype", 100),
			{PropertyName: "value", Min: 0, Max: 99999, NotAllowed: []rune{'§', '='}},
		}},
		{ComponentName: "config", Properties: []ConstraintProperty{
			idProperty("name"),
			textProperty("value", 0, 1000),
		}},
		{ComponentName: "event", Properties: []ConstraintProperty{
			idProperty("id"),
			nameProperty("event_type", 100),
			textProperty("description", 0, 1000),
			textProperty("redirect", 0, 500),
		}},
		{ComponentName: "media", Properties: []ConstraintProperty{
			idProperty("id"),
			textProperty("name", 1, 500),
		}},
		{ComponentName: "user", Properties: []ConstraintProperty{
			idProperty("id"),
			{PropertyName: "first_name", IsAlphabetic: true, Min: 1, Max: 100, AdditionalAllowed: []rune{' ', '-'}},
			{PropertyName: "last_name", IsAlphabetic: true, Min: 1, Max: 100, AdditionalAllowed: []rune{' ', '-'}},
			idProperty("username"),
			{
				PropertyName: "email", IsAlphabetic: true, IsNumeric: true,
				Min: 5, Max: 100, AdditionalAllowed: []rune{'@', '.', '_', '-', '+'},
			},
			textProperty("password", 7, 200),
			{PropertyName: "role", IsAlphabetic: true, Min: 1, Max: 20},
		}},
		{ComponentName: "route_component", Properties: []ConstraintProperty{
			idProperty("route_id"),
			{
				PropertyName: "route_path", IsAlphabetic: true, IsNumeric: true,
				Min: 1, Max: 200, AdditionalAllowed: []rune{'_', '-', '/'},
			},
			idProperty("project_id"),
		}},
		{ComponentName: "auth_jwt", Properties: []ConstraintProperty{
			idProperty("field"),
			idProperty("ref_col"),
		}},
		{ComponentName: "body_data", Properties: []ConstraintProperty{
			idProperty("id"),
			nameProperty("type", 20),
		}},
		{ComponentName: "param_data", Properties: []ConstraintProperty{
			{PropertyName: "delimiter", Min: 1, Max: 5, NotAllowed: []rune{';', '§'}},
			idProperty("id"),
			nameProperty("type", 20),
		}},
	}

	// One row per flow block kind. Local names and references share
	// the id charset; templates are free text minus delimiters.
	blockRows := []Constraint{
		{ComponentName: "fetch_block", Properties: []ConstraintProperty{
			idProperty("local_name"), idProperty("ref_col"),
		}},
		{ComponentName: "filter_block", Properties: []ConstraintProperty{
			idProperty("local_name"), idProperty("ref_var"),
			{
				PropertyName: "ref_property", IsAlphabetic: true, IsNumeric: true,
				Min: 0, Max: 100, AdditionalAllowed: []rune{'_', '-', '.'},
			},
		}},
		{ComponentName: "assignment_block", Properties: []ConstraintProperty{
			idProperty("local_name"),
		}},
		{ComponentName: "template_block", Properties: []ConstraintProperty{
			idProperty("local_name"),
			textProperty("template", 0, 2000),
		}},
		{ComponentName: "condition_block", Properties: []ConstraintProperty{
			textProperty("fail_message", 0, 400),
		}},
		{ComponentName: "loop_block", Properties: []ConstraintProperty{
			idProperty("local_name"),
		}},
		{ComponentName: "update_block", Properties: []ConstraintProperty{
			idProperty("ref_col"),
			{
				PropertyName: "ref_property", IsAlphabetic: true, IsNumeric: true,
				Min: 0, Max: 100, AdditionalAllowed: []rune{'_', '-', '.'},
			},
		}},
		{ComponentName: "create_block", Properties: []ConstraintProperty{
			idProperty("ref_col"), idProperty("ref_object"),
		}},
		{ComponentName: "function_block", Properties: []ConstraintProperty{
			idProperty("local_name"),
			{PropertyName: "func", IsAlphabetic: true, Min: 1, Max: 50, AdditionalAllowed: []rune{'_'}},
		}},
		{ComponentName: "object_block", Properties: []ConstraintProperty{
			idProperty("local_name"),
		}},
		{ComponentName: "property_block", Properties: []ConstraintProperty{
			{
				PropertyName: "local_name", IsAlphabetic: true, IsNumeric: true,
				Min: 1, Max: 100, AdditionalAllowed: []rune{'_', '-'},
			},
			{PropertyName: "apply", IsAlphabetic: true, Min: 0, Max: 30, AdditionalAllowed: []rune{'_'}},
			textProperty("additional", 0, 400),
		}},
		{ComponentName: "return_block", Properties: []ConstraintProperty{
			idProperty("pair_id"),
		}},
		{ComponentName: "fail_block", Properties: []ConstraintProperty{
			textProperty("message", 0, 400),
		}},
	}

	return NewCatalog(append(rows, blockRows...))
}
