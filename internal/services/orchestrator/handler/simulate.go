package handler

// Simulate returns the canned outcome for req used when no external system
// is configured. Unlisted types fall back to the RecordOnly payload.
func Simulate(req Request) Result {
	data := req.Data
	switch req.Type {
	case "analyze_reviews":
		return ok(map[string]any{"analyzed": true, "sentiment": "positive", "count": 42})
	case "analyze_data":
		return ok(map[string]any{"analyzed": true, "insights": []any{"Revenue up 15%", "Occupancy at 78%"}})
	case "check_availability":
		return ok(map[string]any{"available": true, "rooms": []any{"101", "102", "205"}})
	case "check_inventory":
		return ok(map[string]any{"status": "ok", "lowStock": []any{"towels", "soap"}})
	case "generate_report":
		return ok(map[string]any{"reportId": "report_" + req.ActionID, "type": "generated"})
	case "draft_review_response":
		return ok(map[string]any{
			"draft":    "Thank you for your wonderful review! We are delighted you enjoyed your stay...",
			"reviewId": data["reviewId"],
		})
	case "suggest_price":
		return ok(map[string]any{
			"suggestedPrice": int64(145),
			"reason":         "Based on demand and competitor pricing",
			"roomId":         data["roomId"],
		})
	case "post_review_response":
		return ok(map[string]any{"posted": true, "platform": data["platform"], "reviewId": data["reviewId"]})
	case "update_price":
		return ok(map[string]any{"updated": true, "newPrice": data["price"], "roomId": data["roomId"]})
	default:
		return Result{
			Success: true,
			Data: map[string]any{
				"message":   "Action " + req.Type + " recorded",
				"simulated": true,
			},
		}
	}
}

func ok(data map[string]any) Result {
	data["simulated"] = true
	return Result{Success: true, Data: data}
}
