package engine

import (
	"context"
	"fmt"
	"strings"
	"time"

	"presence/internal/config"
	"presence/internal/history"
	"presence/internal/identity"
	"presence/internal/intent"
	"presence/internal/llm"
	"presence/internal/logging"
	"presence/internal/memory"
	"presence/internal/policy"
	"presence/internal/prompt"
	"presence/internal/roles"
	"presence/internal/social"
	"presence/internal/tools"
)

// maxToolRounds bounds the model/tool back-and-forth within one role pass.
const maxToolRounds = 6

// noOpSentinel is what the observer answers when nothing is worth recording.
const noOpSentinel = "NO_OP"

// transcriptLimit is how many recent messages a role pass sees.
const transcriptLimit = 50

// Evaluator runs one full evaluation for an (agent, target) pair: an
// observer pass, an intent pass, and a reply pass when the agent wants to
// speak. Writes only happen through role tools after the model call returns,
// so an abandoned call never leaves partial state behind.
type Evaluator struct {
	assembler *prompt.Assembler
	deps      roles.Deps
	client    llm.Client
	session   *identity.Session
	scheme    identity.DelimiterScheme
	judge     *intent.Evaluator
	clock     func() time.Time
}

// EvaluatorConfig carries the services an Evaluator needs.
type EvaluatorConfig struct {
	Memory  *memory.Store
	History *history.Store
	Sender  roles.Sender
	Client  llm.Client
	Session *identity.Session
	Scheme  identity.DelimiterScheme
	Limits  config.LimitsConfig
	Clock   func() time.Time
}

// NewEvaluator builds an evaluator.
func NewEvaluator(cfg EvaluatorConfig) *Evaluator {
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	return &Evaluator{
		assembler: prompt.NewAssembler(cfg.Memory, cfg.Limits),
		deps: roles.Deps{
			Memory:  cfg.Memory,
			History: cfg.History,
			Sender:  cfg.Sender,
		},
		client:  cfg.Client,
		session: cfg.Session,
		scheme:  cfg.Scheme,
		judge:   intent.NewEvaluator(),
		clock:   clock,
	}
}

// EvalInput describes one scheduled evaluation.
type EvalInput struct {
	Agent  social.Agent
	Target social.Target

	// Window is the pair's rolling intent history; on success exactly one
	// record is appended.
	Window *intent.Window

	// Recent is the chronological tail of the chat history.
	Recent []social.Message

	// Idle marks a tick that saw no new messages since the last evaluation.
	Idle bool

	// LastEval is when the previous evaluation ran (zero on the first).
	LastEval time.Time
}

// EvalResult reports what one evaluation did.
type EvalResult struct {
	Record     intent.Record
	Suppressed bool
	Replied    bool
}

// RunOnce executes the three role passes. A model failure or malformed
// judgment aborts the evaluation: no intent record is appended and nothing
// is sent.
func (e *Evaluator) RunOnce(ctx context.Context, in EvalInput) (*EvalResult, error) {
	now := e.clock()
	lurk := in.Agent.LurkModeFor(in.Target.ID)
	sinceMin := 0
	if !in.LastEval.IsZero() {
		sinceMin = int(now.Sub(in.LastEval) / time.Minute)
	}

	logging.Engine("evaluation start: agent=%s target=%s idle=%v lurk=%s",
		in.Agent.ID, in.Target.ID, in.Idle, lurk)

	// Observer keeps the notes current before anything judges or speaks.
	if _, err := e.runRole(ctx, in, social.RoleObserver, lurk, sinceMin, "", nil); err != nil {
		return nil, fmt.Errorf("observer pass: %w", err)
	}

	suppressed := policy.ShouldSuppress(in.Recent, in.Agent.ID)
	if suppressed {
		logging.Policy("suppression active: agent=%s target=%s", in.Agent.ID, in.Target.ID)
	}

	raw, err := e.runRole(ctx, in, social.RoleIntent, lurk, sinceMin, in.Window.Summary(now), nil)
	if err != nil {
		return nil, fmt.Errorf("intent pass: %w", err)
	}

	record, err := e.judge.Evaluate(raw, suppressed, in.Idle, now)
	if err != nil {
		return nil, fmt.Errorf("intent judgment: %w", err)
	}
	in.Window.Append(record)

	result := &EvalResult{Record: record, Suppressed: suppressed}

	logging.Intent("judged: agent=%s target=%s willingness=%s suppressed=%v",
		in.Agent.ID, in.Target.ID, record.Willingness, suppressed)

	if !record.Willingness.WantsToSpeak() || lurk == social.LurkFull {
		return result, nil
	}

	if _, err := e.runRole(ctx, in, social.RoleReply, lurk, sinceMin, "", record.Shaping); err != nil {
		// The judgment already committed; a failed reply is this tick's loss.
		logging.Get(logging.CategoryEngine).Error("reply pass failed: agent=%s target=%s: %v",
			in.Agent.ID, in.Target.ID, err)
		return result, nil
	}
	result.Replied = true
	return result, nil
}

// runRole performs one role pass: build the toolset, assemble the prompt,
// then loop model calls and tool executions until the model stops calling
// tools.
func (e *Evaluator) runRole(ctx context.Context, in EvalInput, role social.Role, lurk social.LurkMode, sinceMin int, intentSummary string, shaping *intent.Shaping) (string, error) {
	ts, err := roles.Build(role, in.Agent, in.Target, e.deps)
	if err != nil {
		return "", err
	}

	doc, err := e.assembler.Assemble(prompt.Input{
		Agent:            in.Agent,
		Target:           in.Target,
		Role:             role,
		Lurk:             lurk,
		Scheme:           e.scheme,
		Session:          e.session,
		Now:              e.clock(),
		SinceLastEvalMin: sinceMin,
		IntentSummary:    intentSummary,
		ToolNotes:        ts.Notes,
	})
	if err != nil {
		return "", err
	}

	system := doc.Render()
	user := e.renderTranscript(in.Recent)
	if shaping != nil {
		user += "\n\n" + shapingDirective(shaping)
	}
	defs := toolDefinitions(ts.Registry)

	resp, err := e.client.CompleteWithTools(ctx, system, user, defs)
	if err != nil {
		return "", err
	}

	for round := 0; len(resp.ToolCalls) > 0; round++ {
		if round >= maxToolRounds {
			logging.Get(logging.CategoryEngine).Warn("tool round limit reached: agent=%s role=%s", in.Agent.ID, role)
			break
		}

		var results []string
		for _, call := range resp.ToolCalls {
			res, execErr := ts.Registry.Execute(ctx, call.Name, call.Input)
			if execErr != nil {
				results = append(results, fmt.Sprintf("%s failed: %v", call.Name, execErr))
				continue
			}
			results = append(results, fmt.Sprintf("%s: %s", call.Name, res.Result))
		}

		user += "\n\n[Tool results]\n" + strings.Join(results, "\n")
		resp, err = e.client.CompleteWithTools(ctx, system, user, defs)
		if err != nil {
			return "", err
		}
	}

	text := strings.TrimSpace(resp.Text)
	if role == social.RoleObserver && text == noOpSentinel {
		logging.EngineDebug("observer no-op: agent=%s target=%s", in.Agent.ID, in.Target.ID)
	}
	return text, nil
}

// renderTranscript formats the recent messages with the identity delimiters
// so the model can tell who said what. Owner-authored lines carry the session
// secret inside the identity segment; bodies are scrubbed so no group member
// can smuggle the secret or a forged identity segment into free text.
func (e *Evaluator) renderTranscript(recent []social.Message) string {
	if len(recent) > transcriptLimit {
		recent = recent[len(recent)-transcriptLimit:]
	}
	if len(recent) == 0 {
		return "(no recent messages)"
	}

	var b strings.Builder
	b.WriteString("Recent conversation:\n")
	for _, m := range recent {
		sender := m.SenderName
		if m.FromSelf {
			sender = sender + " (you)"
		}
		identitySeg := fmt.Sprintf("%s %s at %s", sender, m.SenderID, m.Timestamp.Format("15:04"))
		if e.ownerAuthored(m) {
			identitySeg += " " + e.session.Secret()
		}
		body := e.scrubBody(m.Content)
		if e.scheme.Configured() {
			fmt.Fprintf(&b, "%s%s%s%s%s%s\n",
				e.scheme.NameLeft, identitySeg, e.scheme.NameRight,
				e.scheme.MessageLeft, body, e.scheme.MessageRight)
		} else {
			fmt.Fprintf(&b, "[%s] %s\n", identitySeg, body)
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

// ownerAuthored reports whether the message came from the configured owner's
// platform account. Only the connector-supplied sender id counts; nothing in
// the message text can make a sender the owner.
func (e *Evaluator) ownerAuthored(m social.Message) bool {
	if e.session == nil || m.FromSelf {
		return false
	}
	owner := e.session.Owner()
	return owner.OwnerQQ != "" && m.SenderID == owner.OwnerQQ
}

// scrubBody strips the session secret and the identity delimiters from
// untrusted message text before it is placed inside the transcript.
func (e *Evaluator) scrubBody(content string) string {
	if e.session != nil {
		content = strings.ReplaceAll(content, e.session.Secret(), "")
	}
	if e.scheme.Configured() {
		for _, d := range []string{e.scheme.NameLeft, e.scheme.NameRight, e.scheme.MessageLeft, e.scheme.MessageRight} {
			content = strings.ReplaceAll(content, d, "")
		}
	}
	return content
}

// shapingDirective restates the intent role's shaping decision for the
// reply pass.
func shapingDirective(s *intent.Shaping) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Reply shaping from your earlier judgment: about %d characters across %d message(s).", s.TargetLength, s.Chunks)
	if s.Mention != "" {
		fmt.Fprintf(&b, " Address %s directly.", s.Mention)
	}
	return b.String()
}

// toolDefinitions renders a registry as model-facing tool declarations.
func toolDefinitions(reg *tools.Registry) []llm.ToolDefinition {
	all := reg.All()
	defs := make([]llm.ToolDefinition, 0, len(all))
	for _, t := range all {
		defs = append(defs, llm.ToolDefinition{
			Name:        t.Name,
			Description: t.Description,
			InputSchema: t.Schema.InputSchema(),
		})
	}
	return defs
}
