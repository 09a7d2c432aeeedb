package pilitosettings

// User-facing strings for the settings screen and its action.
const (
	PageTitle = "Pilito Settings"
	MenuTitle = "Settings"

	MsgAccessDenied    = "Access denied."
	MsgEnterToken      = "Please enter a token first."
	MsgUpstreamError   = "Could not connect to the Pilito API. Please try again."
	MsgBadAPIURL       = "The Pilito API URL is not valid. Check the API URL setting."
	MsgUnexpectedError = "An unexpected error occurred while testing the connection."
	MsgSettingsSaved   = "Settings saved."
	MsgSaveFailed      = "Settings could not be saved. Please try again."
	MsgSavePartial     = "Some settings were saved but others could not be. Check the values below and save again."
)
