package directive

import (
	"testing"
)

func allowOnly(types ...string) func(string) bool {
	set := make(map[string]struct{}, len(types))
	for _, actionType := range types {
		set[actionType] = struct{}{}
	}
	return func(actionType string) bool {
		_, ok := set[actionType]
		return ok
	}
}

func TestParsePlainText(t *testing.T) {
	got := Parse("  Occupancy is 87% this week.  ", nil)
	if got.Text != "Occupancy is 87% this week." {
		t.Fatalf("text = %q", got.Text)
	}
	if got.Proposal != nil || got.Discarded != nil {
		t.Fatalf("unexpected proposal %+v discard %+v", got.Proposal, got.Discarded)
	}
}

func TestParseRecognizesDirective(t *testing.T) {
	reply := `I'll update it. [ACTION:update_price:{"roomId":"101","price":145}]`
	got := Parse(reply, allowOnly("update_price"))
	if got.Text != "I'll update it." {
		t.Fatalf("text = %q, want %q", got.Text, "I'll update it.")
	}
	if got.Proposal == nil {
		t.Fatal("expected proposal")
	}
	if got.Proposal.Type != "update_price" {
		t.Fatalf("type = %q, want update_price", got.Proposal.Type)
	}
	if got.Proposal.Data["roomId"] != "101" {
		t.Fatalf("roomId = %#v, want \"101\"", got.Proposal.Data["roomId"])
	}
	if got.Proposal.Data["price"] != int64(145) {
		t.Fatalf("price = %#v, want int64(145)", got.Proposal.Data["price"])
	}
}

func TestParseMultilinePayloadWithBrackets(t *testing.T) {
	reply := "Drafted a post.\n[ACTION:generate_social_post:{\n  \"text\": \"Sunset [Batumi] vibes\",\n  \"tags\": [\"sea\", \"summer\"],\n  \"rate\": 4.5\n}\n]\nLet me know."
	got := Parse(reply, allowOnly("generate_social_post"))
	if got.Proposal == nil {
		t.Fatalf("expected proposal, discard = %+v", got.Discarded)
	}
	if got.Proposal.Data["text"] != "Sunset [Batumi] vibes" {
		t.Fatalf("text field = %#v", got.Proposal.Data["text"])
	}
	tags, ok := got.Proposal.Data["tags"].([]any)
	if !ok || len(tags) != 2 {
		t.Fatalf("tags = %#v", got.Proposal.Data["tags"])
	}
	if got.Proposal.Data["rate"] != 4.5 {
		t.Fatalf("rate = %#v, want 4.5", got.Proposal.Data["rate"])
	}
	if got.Text != "Drafted a post.\n\nLet me know." {
		t.Fatalf("text = %q", got.Text)
	}
}

func TestParseOnlyFirstDirective(t *testing.T) {
	reply := `[ACTION:check_inventory:{"item":"towels"}] and [ACTION:order_supplies:{"item":"towels"}]`
	got := Parse(reply, nil)
	if got.Proposal == nil || got.Proposal.Type != "check_inventory" {
		t.Fatalf("proposal = %+v, want check_inventory", got.Proposal)
	}
	if got.Text != `and [ACTION:order_supplies:{"item":"towels"}]` {
		t.Fatalf("text = %q", got.Text)
	}
}

func TestParseDiscards(t *testing.T) {
	tests := []struct {
		name  string
		reply string
		want  string
	}{
		{name: "invalid json", reply: `Done [ACTION:update_price:{roomId:101}]`, want: "update_price"},
		{name: "array payload", reply: `Done [ACTION:update_price:[1,2]]`, want: "update_price"},
		{name: "null payload", reply: `Done [ACTION:update_price:null]`, want: "update_price"},
		{name: "unclosed", reply: `Done [ACTION:update_price:{"roomId":"101"}`, want: "update_price"},
		{name: "trailing junk", reply: `Done [ACTION:update_price:{"roomId":"101"} extra]`, want: "update_price"},
		{name: "missing type", reply: `Done [ACTION::{"roomId":"101"}]`, want: ""},
		{name: "bad type chars", reply: `Done [ACTION:update-price:{}]`, want: ""},
		{name: "not allowed", reply: `Done [ACTION:launch_rocket:{}]`, want: "launch_rocket"},
		{name: "marker at end", reply: `Done [ACTION:`, want: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Parse(tt.reply, allowOnly("update_price"))
			if got.Proposal != nil {
				t.Fatalf("unexpected proposal %+v", got.Proposal)
			}
			if got.Text != tt.reply {
				t.Fatalf("text = %q, want original reply", got.Text)
			}
			if got.Discarded == nil {
				t.Fatal("expected discard reason")
			}
			if got.Discarded.Type != tt.want {
				t.Fatalf("discard type = %q, want %q", got.Discarded.Type, tt.want)
			}
		})
	}
}

func TestParseNestedNumbers(t *testing.T) {
	got := Parse(`[ACTION:create_invoice:{"lines":[{"qty":2,"amount":12.5}],"total":1e3}]`, nil)
	if got.Proposal == nil {
		t.Fatal("expected proposal")
	}
	lines := got.Proposal.Data["lines"].([]any)
	line := lines[0].(map[string]any)
	if line["qty"] != int64(2) || line["amount"] != 12.5 {
		t.Fatalf("line = %#v", line)
	}
	if got.Proposal.Data["total"] != float64(1000) {
		t.Fatalf("total = %#v, want 1000", got.Proposal.Data["total"])
	}
	if got.Text != "" {
		t.Fatalf("text = %q, want empty", got.Text)
	}
}
