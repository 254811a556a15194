package descriptions

import "sort"

// Tool names
const (
	ToolScanFile      = "form_scan_file"
	ToolScanHTML      = "form_scan_html"
	ToolScanURL       = "form_scan_url"
	ToolScanDirectory = "form_scan_directory"
	ToolTransform     = "form_transform_value"
	ToolRecordStart   = "form_record_start"
	ToolRecordInput   = "form_record_input"
	ToolRecordEvent   = "form_record_event"
	ToolRecordStop    = "form_record_stop"
	ToolObservations  = "form_observations"
	ToolServerInfo    = "form_server_info"
)

// Comprehensive tool descriptions with practical examples and use cases

const (
	// Discovery Tools
	ScanFileDescription = `Discover every fillable field in an HTML page or PDF AcroForm and classify what each one asks for.

**When to use:** You have a saved application page or a fillable PDF and need to know which questions it asks before filling it.

**Why it's useful:** Finds controls inside shadow roots and srcdoc frames, recovers a human label even when no <label> is bound, and ranks semantic types (FIRST_NAME, EMAIL, DEGREE, WORK_AUTH...) with the evidence behind each score.

**Examples:**
• Job application: "Scan apply.html and tell me which fields need my education history"
• PDF intake form: "List the questions in visa-application.pdf"
• Audit: "Which fields of signup.html have no label at all?"

**Common workflows:**
1. Fill preparation: Scan file → Read top candidates → Transform profile values → Fill
2. Form review: Scan file → Inspect label_source and section_title → Fix markup

**Best practices:** Paths are resolved inside the configured directory. A candidate of UNKNOWN with score 0 means no signal matched, not an error.`

	ScanHTMLDescription = `Discover and classify the fields of HTML markup passed inline.

**When to use:** The page is not on disk, for example markup copied from a browser or produced by another tool.

**Why it's useful:** Same analysis as form_scan_file without touching the file system.

**Examples:**
• "Scan this <form> snippet and classify its fields"
• "Which of these inputs is the phone number?"

**Best practices:** Pass the page URL too when you have it; it becomes the site key of anything recorded later.`

	ScanURLDescription = `Open a live page in Chrome, capture its DOM with open shadow roots inlined and typed values preserved, then discover and classify its fields.

**When to use:** The form is rendered by JavaScript or lives behind web components that a static download would miss.

**Why it's useful:** Sees exactly what a user sees, including values already typed into controls.

**Examples:**
• "Scan https://jobs.example.com/apply/123 and list the required questions"

**Best practices:** Requires a reachable Chrome (configured DevTools URL) or a local browser the server can launch.`

	ScanDirectoryDescription = `Scan every HTML and PDF form in a directory in parallel.

**When to use:** You have a folder of saved forms and want an inventory of the questions they ask.

**Why it's useful:** One call covers the whole collection, with per-file failures reported instead of aborting the batch.

**Examples:**
• "Scan ~/forms and tell me which ones ask for sponsorship status"

**Best practices:** Leave directory empty to use the configured default. Use limit to cap very large folders.`

	// Value Tools
	TransformDescription = `Convert one stored profile value into the textual variant a target field expects.

**When to use:** You know the canonical value (a full name, an ISO date, an E.164 phone, a boolean, a degree) and the target field's label, placeholder, maxlength or options.

**Why it's useful:** Splits names by field role (CJK aware), reformats dates to the field's format or picks the month option, fits phones to placeholders and length limits, maps booleans and degrees onto the field's own option texts.

**Examples:**
• "+14155551234 into a field with placeholder (555) 555-5555" → "(415) 555-1234"
• "2024-05-15 into a select whose options are month names" → "May"
• "张三 into a field labelled 姓" → "张"

**Best practices:** Pass the field's options whenever it has them. A value no transformer can handle comes back unchanged.`

	// Recording Tools
	RecordStartDescription = `Load a form and start recording what gets entered into it.

**When to use:** You want to learn a user's answers from a form they fill, so they can be reused on the next site.

**Why it's useful:** Captures each field on blur or change, keeps one entry per question, and commits them as observations only when the form is submitted. Abandoned forms leave nothing behind.

**Common workflows:**
1. Learning: Record start → Record input/event for each answer → Submit event → Record stop
2. Replay check: Record start → Inputs → Observations → Compare with profile

**Best practices:** Keep the returned session_id; every other recording tool needs it.`

	RecordInputDescription = `Set the live value of one control in a recording session.

**When to use:** Simulating a user typing or choosing an option.

**Why it's useful:** Choice controls (select, checkbox, radio) fire change just like a browser, so they are captured immediately. Text controls are captured on the next blur.

**Examples:**
• "Type jane@example.com into #email"
• "Choose the radio option 'no' in form#apply input[type=\"radio\"][name=\"sponsor\"]"

**Best practices:** For checkboxes pass true or false. For radio groups pass the option value or its label.`

	RecordEventDescription = `Dispatch a DOM event inside a recording session.

**When to use:** blur to capture a text field, submit or a click on a Next/Submit button to commit, beforeunload to abandon.

**Why it's useful:** Drives the same lifecycle a real browser would, including the short settle delay after submit-like clicks.

**Best practices:** Selectors are element locators as returned by the scan tools, "#id", or a bare name.`

	RecordStopDescription = `Stop a recording session and return everything it committed.

**When to use:** The user is done with the form.

**Best practices:** Uncommitted entries are reported but not persisted; submit first if they should be kept.`

	ObservationsDescription = `List committed observations, from a live session or from the observation store.

**When to use:** Reviewing what has been learned about a user's answers, optionally filtered by site or type.

**Best practices:** Without session_id the persistent store is queried; it must be enabled with --db.`

	// Utility Tools
	ServerInfoDescription = `Get server status, configuration, loaded classifier parsers and transformers, and the forms available in the default directory.

**When to use:** Starting a session or troubleshooting why a file cannot be found.

**Best practices:** Run at the start of a session to learn the default directory and whether persistence is on.`
)

// ToolDescriptions maps tool names to their comprehensive descriptions
var ToolDescriptions = map[string]string{
	ToolScanFile:      ScanFileDescription,
	ToolScanHTML:      ScanHTMLDescription,
	ToolScanURL:       ScanURLDescription,
	ToolScanDirectory: ScanDirectoryDescription,
	ToolTransform:     TransformDescription,
	ToolRecordStart:   RecordStartDescription,
	ToolRecordInput:   RecordInputDescription,
	ToolRecordEvent:   RecordEventDescription,
	ToolRecordStop:    RecordStopDescription,
	ToolObservations:  ObservationsDescription,
	ToolServerInfo:    ServerInfoDescription,
}

// GetToolDescription returns the comprehensive description for a tool
func GetToolDescription(toolName string) string {
	if desc, exists := ToolDescriptions[toolName]; exists {
		return desc
	}
	return "Tool description not available"
}

// GetAllToolNames returns a sorted list of all available tool names
func GetAllToolNames() []string {
	names := make([]string, 0, len(ToolDescriptions))
	for name := range ToolDescriptions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
