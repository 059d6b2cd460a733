package lsp

import "github.com/google/uuid"

// StartServerCommand asks the host to start one language server. The host is
// the only party with the session context a real server needs, so the
// manager never spawns servers itself; it sends this command and waits for
// the reply on Response.
type StartServerCommand struct {
	WorkspaceRoot string
	ServerName    string
	LanguageID    string

	// TraceID correlates the command across manager and host logs.
	TraceID string

	// Response carries exactly one reply. The channel is buffered so the
	// host never blocks on a caller that has given up waiting.
	Response chan StartServerResponse
}

// StartServerResponse is the host's reply to a StartServerCommand.
type StartServerResponse struct {
	Result ServerStartResult
	Err    error
}

// Reply delivers the host's response without blocking. A second reply, or a
// reply to an abandoned command, is discarded.
func (c StartServerCommand) Reply(result ServerStartResult, err error) {
	select {
	case c.Response <- StartServerResponse{Result: result, Err: err}:
	default:
	}
}

func newStartServerCommand(workspaceRoot, serverName, languageID string) StartServerCommand {
	return StartServerCommand{
		WorkspaceRoot: workspaceRoot,
		ServerName:    serverName,
		LanguageID:    languageID,
		TraceID:       uuid.New().String(),
		Response:      make(chan StartServerResponse, 1),
	}
}
