package generation

import "context"

const defaultStaticReply = "OpsBot is running without a generation service. Configure OPSBOT_LLM_PROVIDER to get real answers."

// Static answers every request with a fixed reply. It backs local runs and tests.
type Static struct {
	Reply string
}

// Generate returns the configured reply.
func (s Static) Generate(ctx context.Context, _ Request) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if s.Reply == "" {
		return defaultStaticReply, nil
	}
	return s.Reply, nil
}
