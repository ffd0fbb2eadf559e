package mcp

import "github.com/mark3labs/mcp-go/mcp"

func idParam() mcp.ToolOption {
	return mcp.WithString("id", mcp.Required(), mcp.Description("Connection id"))
}

// fieldParams lists the caller-editable connection fields shared by create and update.
func fieldParams() []mcp.ToolOption {
	return []mcp.ToolOption{
		mcp.WithString("guestEmail", mcp.Description("Guest contact email")),
		mcp.WithString("hostEmail", mcp.Description("Host contact email")),
		mcp.WithNumber("locationLat", mcp.Description("Latitude where the conversation took place")),
		mcp.WithNumber("locationLng", mcp.Description("Longitude where the conversation took place")),
		mcp.WithNumber("vibeDepth", mcp.Description("Tone depth, stored as-is (default 50)")),
		mcp.WithNumber("vibeHeart", mcp.Description("Second tone axis, stored as-is")),
		mcp.WithBoolean("guestConsented", mcp.Description("Guest consent; the consent timestamp is stamped the first time this becomes true")),
		mcp.WithString("audioData", mcp.Description("Recorded audio as a base64 data URL, e.g. data:audio/webm;base64,...")),
		mcp.WithNumber("audioDurationSeconds", mcp.Description("Recording length in seconds")),
		mcp.WithArray("questionsAsked", mcp.WithStringItems(), mcp.Description("Questions asked during the conversation, in order")),
		mcp.WithNumber("npsScore", mcp.Description("Satisfaction score 0-10")),
		mcp.WithString("feedbackText", mcp.Description("Free-text feedback")),
		mcp.WithBoolean("reminderSent", mcp.Description("Whether the follow-up reminder was sent")),
	}
}

var createToolDef = mcp.NewTool("connection_create", append([]mcp.ToolOption{
	mcp.WithDescription("Create a connection from a captured intention. Returns the full record with defaults filled in."),
	mcp.WithString("hostId", mcp.Required(), mcp.Description("Host identifier")),
	mcp.WithString("intentionText", mcp.Required(), mcp.Description("The guest's intention, non-empty")),
}, fieldParams()...)...)

var updateToolDef = mcp.NewTool("connection_update", append([]mcp.ToolOption{
	mcp.WithDescription("Merge fields into a connection. Omitted fields keep their value."),
	idParam(),
	mcp.WithString("intentionText", mcp.Description("Replacement intention, non-empty")),
}, fieldParams()...)...)

var getToolDef = mcp.NewTool("connection_get",
	mcp.WithDescription("Fetch one connection by id."),
	idParam(),
)

var listToolDef = mcp.NewTool("connection_list",
	mcp.WithDescription("List every connection in creation order."),
)

var analyzeToolDef = mcp.NewTool("connection_analyze",
	mcp.WithDescription("Transcribe the recorded audio and derive intention summary, insights and poster prompt. Requires audioData. Takes several seconds."),
	idParam(),
)

var posterToolDef = mcp.NewTool("connection_poster",
	mcp.WithDescription("Generate the poster image from the stored poster prompt. Requires a prior connection_analyze."),
	idParam(),
	mcp.WithBoolean("async", mcp.Description("Start generation in the background and return immediately; poll connection_get for posterImageUrl")),
)

var followUpToolDef = mcp.NewTool("connection_followup",
	mcp.WithDescription("Suggest deeper questions, topics to explore and action items from the transcript. Nothing is stored. Requires a prior connection_analyze."),
	idParam(),
)

var healthToolDef = mcp.NewTool("connection_health",
	mcp.WithDescription("Report which storage backend is active and whether data survives a restart."),
)
