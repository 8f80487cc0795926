package cli

import (
	"errors"

	ghErrors "ghrest.dev/ghrest/internal/errors"
	"ghrest.dev/ghrest/internal/output"
)

// PrintError reports a command failure once, with a hint for errors the user can act on
func PrintError(splog *output.Splog, err error) {
	splog.Error("%v", err)
	switch {
	case errors.Is(err, ghErrors.ErrConflict):
		splog.Tip("The branch or file changed on the remote since it was read. Re-run the command to apply it on top of the new state.")
	case ghErrors.IsAuthFailure(err):
		splog.Tip("Check the token in GITHUB_TOKEN or in the config file.")
	case ghErrors.IsRateLimited(err):
		splog.Tip("The API rate limit is exhausted. Run `ghrest rate-limit` to see when it resets.")
	case errors.Is(err, ghErrors.ErrTreeTruncated):
		splog.Tip("The repository tree is too large to list in one request, so the command was not applied.")
	case errors.Is(err, ghErrors.ErrPreconditionMissing):
		splog.Tip("Configure it with `ghrest config set` or the matching flag.")
	}
}
