// Package tui is the terminal front end of a live transcription session. It
// drives the session over the HTTP API and renders the event stream.
package tui

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/livescribe/livescribe/internal/api"
	"github.com/livescribe/livescribe/pkg/events"
	"github.com/livescribe/livescribe/pkg/language"
	"github.com/livescribe/livescribe/pkg/recognition"
)

// InputMode tracks whether keys drive the session or edit a question.
type InputMode int

const (
	ModeNormal InputMode = iota
	ModeAsk
)

// Model is the root bubbletea model for the livescribe TUI.
type Model struct {
	client   *Client
	stream   *Stream
	notifier *Notifier

	// Connection state
	connected        bool
	connError        string
	reconnecting     bool
	reconnectAttempt int

	// Session state
	sessionID        string
	recording        bool
	languageCode     string
	languageName     string
	enhancedMode     bool
	transcript       string
	interim          string
	version          uint64
	wordCount        int
	recordingSeconds int
	audioLevel       int
	detected         string

	// Enrichment output
	summary  string
	answer   *AnswerMsg
	thinking bool

	// UI state
	mode             InputMode
	question         string
	width            int
	height           int
	transcriptScroll int
	transcriptLive   bool

	errorMessage   string
	errorTransient bool
	statusText     string
}

// New creates a Model that opens a live session in lang on the server behind
// client.
func New(client *Client, notifier *Notifier, lang string) Model {
	if lang == "" {
		lang = language.Default
	}
	return Model{
		client:         client,
		notifier:       notifier,
		languageCode:   lang,
		languageName:   language.DisplayName(lang),
		statusText:     "Conectando...",
		transcriptLive: true,
	}
}

// Init returns the initial command: open the session and its event stream.
func (m Model) Init() tea.Cmd {
	return connectCmd(m.client, m.sessionID, m.languageCode)
}

// connectCmd resumes the session with the given id, or creates a new one
// when it no longer exists. The first stream event is the session snapshot.
func connectCmd(client *Client, sessionID, lang string) tea.Cmd {
	return func() tea.Msg {
		ctx := context.Background()
		if sessionID == "" {
			snap, err := client.CreateLive(ctx, lang)
			if err != nil {
				return ConnectErrorMsg{Err: err}
			}
			sessionID = snap.ID
		}

		stream, err := client.Subscribe(ctx, sessionID)
		if errors.Is(err, ErrNotFound) {
			snap, cerr := client.CreateLive(ctx, lang)
			if cerr != nil {
				return ConnectErrorMsg{Err: cerr}
			}
			stream, err = client.Subscribe(ctx, snap.ID)
		}
		if err != nil {
			return ConnectErrorMsg{Err: err}
		}

		first, err := stream.Next()
		if err != nil || first.Snapshot == nil {
			stream.Close()
			if err == nil {
				err = errors.New("stream did not start with a snapshot")
			}
			return ConnectErrorMsg{Err: err}
		}
		return ConnectedMsg{Stream: stream, Snapshot: *first.Snapshot}
	}
}

// readEventCmd reads the next event from the stream.
func readEventCmd(stream *Stream) tea.Cmd {
	return func() tea.Msg {
		ev, err := stream.Next()
		if err != nil {
			return StreamErrorMsg{Err: err}
		}
		return StreamEventMsg{Event: ev}
	}
}

func actionCmd(client *Client, id, action string) tea.Cmd {
	return func() tea.Msg {
		snap, err := client.Action(context.Background(), id, action)
		if err != nil {
			return ActionErrorMsg{Action: action, Err: err}
		}
		return SnapshotMsg{Snapshot: snap}
	}
}

func switchLanguageCmd(client *Client, id, code string) tea.Cmd {
	return func() tea.Msg {
		snap, err := client.SwitchLanguage(context.Background(), id, code)
		if err != nil {
			return ActionErrorMsg{Action: "language", Err: err}
		}
		return SnapshotMsg{Snapshot: snap}
	}
}

func refreshCmd(client *Client, id string) tea.Cmd {
	return func() tea.Msg {
		snap, err := client.Live(context.Background(), id)
		if err != nil {
			return ActionErrorMsg{Action: "refresh", Err: err}
		}
		return SnapshotMsg{Snapshot: snap}
	}
}

func summaryCmd(client *Client, transcript string) tea.Cmd {
	return func() tea.Msg {
		summary, err := client.Summarize(context.Background(), transcript)
		if err != nil {
			return ActionErrorMsg{Action: "summary", Err: err}
		}
		return SummaryMsg{Summary: summary}
	}
}

func askCmd(client *Client, transcript, question string) tea.Cmd {
	return func() tea.Msg {
		answer, err := client.Analyze(context.Background(), transcript, question)
		if err != nil {
			return ActionErrorMsg{Action: "analyze", Err: err}
		}
		return answer
	}
}

func saveCmd(client *Client, req api.CreateSessionRequest) tea.Cmd {
	return func() tea.Msg {
		resp, err := client.SaveSession(context.Background(), req)
		if err != nil {
			return ActionErrorMsg{Action: "save", Err: err}
		}
		return SavedMsg{ID: resp.ID}
	}
}

// clearTransientErrorCmd fires after a delay to clear transient errors.
func clearTransientErrorCmd() tea.Cmd {
	return tea.Tick(5*time.Second, func(time.Time) tea.Msg {
		return ClearTransientErrorMsg{}
	})
}

// reconnectCmd schedules a reconnection attempt with exponential backoff.
func reconnectCmd(attempt int) tea.Cmd {
	delay := min(time.Duration(1<<min(attempt, 4))*time.Second, 30*time.Second)
	return tea.Tick(delay, func(time.Time) tea.Msg {
		return ReconnectTickMsg{}
	})
}

// Update processes messages and returns the updated model and any commands.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {

	case tea.KeyMsg:
		if m.mode == ModeAsk {
			return m.handleAskKey(msg)
		}
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case ConnectedMsg:
		m.stream = msg.Stream
		m.connected = true
		m.connError = ""
		m.reconnecting = false
		m.reconnectAttempt = 0
		m.applySnapshot(msg.Snapshot)
		m.statusText = "Conectado"
		if m.stream == nil {
			return m, nil
		}
		return m, readEventCmd(m.stream)

	case ConnectErrorMsg:
		m.connected = false
		m.connError = msg.Err.Error()
		m.reconnecting = true
		m.statusText = "Servidor indisponível. Reconectando..."
		return m, reconnectCmd(m.reconnectAttempt)

	case StreamEventMsg:
		cmd := m.handleEvent(msg.Event)
		if m.stream == nil {
			return m, cmd
		}
		return m, tea.Batch(cmd, readEventCmd(m.stream))

	case StreamErrorMsg:
		m.connected = false
		m.reconnecting = true
		if !errors.Is(msg.Err, io.EOF) {
			m.connError = msg.Err.Error()
		}
		m.statusText = "Desconectado. Reconectando..."
		if m.stream != nil {
			m.stream.Close()
			m.stream = nil
		}
		return m, reconnectCmd(m.reconnectAttempt)

	case ReconnectTickMsg:
		m.reconnectAttempt++
		return m, connectCmd(m.client, m.sessionID, m.languageCode)

	case SnapshotMsg:
		m.applySnapshot(msg.Snapshot)
		return m, nil

	case ActionErrorMsg:
		m.thinking = false
		m.errorMessage = fmt.Sprintf("%s: %v", msg.Action, msg.Err)
		m.errorTransient = true
		return m, clearTransientErrorCmd()

	case SummaryMsg:
		m.thinking = false
		m.summary = msg.Summary
		m.answer = nil
		return m, nil

	case AnswerMsg:
		m.thinking = false
		answer := msg
		m.answer = &answer
		m.summary = ""
		return m, nil

	case SavedMsg:
		m.statusText = "Sessão salva (" + msg.ID + ")"
		return m, nil

	case ClearTransientErrorMsg:
		if m.errorTransient {
			m.errorMessage = ""
			m.errorTransient = false
		}
		return m, nil
	}

	return m, nil
}

func (m *Model) applySnapshot(s recognition.Snapshot) {
	m.sessionID = s.ID
	m.recording = s.Recording
	m.languageCode = s.Language
	m.languageName = s.LanguageName
	m.enhancedMode = s.EnhancedMode
	m.transcript = s.Transcript
	m.interim = s.Interim
	m.version = s.Version
	m.wordCount = s.WordCount
	m.recordingSeconds = s.RecordingSeconds
	m.audioLevel = s.AudioLevel
	if s.LastDetection != nil {
		m.detected = s.LastDetection.Language
	}
	if s.LastError != "" {
		m.errorMessage = s.LastError
		m.errorTransient = false
	}
	if m.transcriptLive {
		m.scrollToBottom()
	}
}

// handleEvent applies one stream event and returns any resulting command.
func (m *Model) handleEvent(ev StreamEvent) tea.Cmd {
	if ev.Snapshot != nil {
		m.applySnapshot(*ev.Snapshot)
		return nil
	}
	env := ev.Envelope
	if env == nil {
		return nil
	}

	switch env.Type {
	case events.TranscriptUpdated:
		var d events.TranscriptData
		if decode(env.Data, &d) {
			m.transcript = d.Transcript
			m.interim = d.Interim
			m.version = d.Version
			m.wordCount = d.WordCount
			if m.transcriptLive {
				m.scrollToBottom()
			}
		}

	case events.TranscriptCleared:
		m.transcript = ""
		m.interim = ""
		m.wordCount = 0
		m.summary = ""
		m.answer = nil
		m.transcriptScroll = 0

	case events.TranscriptEnhanced:
		m.statusText = "Texto aprimorado"
		return refreshCmd(m.client, m.sessionID)

	case events.SessionStarted:
		m.recording = true
		m.errorMessage = ""
		m.statusText = "Gravando"

	case events.SessionStopped:
		var d events.SessionStateData
		decode(env.Data, &d)
		m.recording = false
		m.interim = ""
		m.audioLevel = 0
		if d.Reason != "language_switch" {
			m.statusText = "Parado"
		}

	case events.SessionTick:
		var d events.TickData
		if decode(env.Data, &d) {
			m.recordingSeconds = d.RecordingSeconds
		}

	case events.AudioLevel:
		var d events.AudioLevelData
		if decode(env.Data, &d) {
			m.audioLevel = d.Percent
		}

	case events.LanguageDetected:
		var d events.DetectionData
		if decode(env.Data, &d) {
			m.detected = d.Language
		}

	case events.LanguageSwitched:
		var d events.LanguageSwitchData
		if decode(env.Data, &d) {
			m.languageCode = d.To
			m.languageName = d.Name
		}

	case events.EnhancedModeToggled:
		var d events.EnhancedModeData
		if decode(env.Data, &d) {
			m.enhancedMode = d.Enabled
		}

	case events.RecognizerError:
		var d events.ErrorData
		if decode(env.Data, &d) {
			m.errorMessage = d.Error
			m.errorTransient = false
		}

	case events.Notification:
		var d events.NotificationData
		if decode(env.Data, &d) {
			m.statusText = d.Message
			m.notifier.Notify(d.Level, d.Message)
		}
	}
	return nil
}

func decode(data json.RawMessage, v any) bool {
	return json.Unmarshal(data, v) == nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case KeyQuit, KeyQuitUpper, KeyCtrlC:
		if m.stream != nil {
			m.stream.Close()
		}
		return m, tea.Quit

	case KeyUp:
		m.transcriptLive = false
		if m.transcriptScroll > 0 {
			m.transcriptScroll--
		}
		return m, nil

	case KeyDown:
		maxScroll := m.maxTranscriptScroll()
		m.transcriptScroll++
		if m.transcriptScroll >= maxScroll {
			m.transcriptScroll = maxScroll
			m.transcriptLive = true
		}
		return m, nil

	case KeyToggleNotify:
		if m.notifier != nil {
			m.notifier.SetEnabled(!m.notifier.Enabled())
		}
		return m, nil
	}

	if !m.connected {
		return m, nil
	}

	switch msg.String() {
	case KeySpace:
		if m.recording {
			return m, actionCmd(m.client, m.sessionID, "stop")
		}
		return m, actionCmd(m.client, m.sessionID, "start")

	case KeyClear:
		return m, actionCmd(m.client, m.sessionID, "clear")

	case KeyEnhanced:
		return m, actionCmd(m.client, m.sessionID, "enhanced-mode")

	case KeyLanguage:
		return m, switchLanguageCmd(m.client, m.sessionID, language.Next(m.languageCode))

	case KeySummary:
		if strings.TrimSpace(m.transcript) == "" {
			return m, nil
		}
		m.thinking = true
		return m, summaryCmd(m.client, m.transcript)

	case KeyAsk:
		if strings.TrimSpace(m.transcript) == "" {
			return m, nil
		}
		m.mode = ModeAsk
		m.question = ""
		return m, nil

	case KeySave:
		if strings.TrimSpace(m.transcript) == "" {
			return m, nil
		}
		return m, saveCmd(m.client, m.sessionRequest(time.Now()))
	}

	return m, nil
}

func (m Model) handleAskKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc, tea.KeyCtrlC:
		m.mode = ModeNormal
		m.question = ""
		return m, nil

	case tea.KeyEnter:
		m.mode = ModeNormal
		question := strings.TrimSpace(m.question)
		m.question = ""
		if question == "" {
			return m, nil
		}
		m.thinking = true
		return m, askCmd(m.client, m.transcript, question)

	case tea.KeyBackspace:
		if r := []rune(m.question); len(r) > 0 {
			m.question = string(r[:len(r)-1])
		}
		return m, nil

	case tea.KeySpace:
		m.question += " "
		return m, nil

	case tea.KeyRunes:
		m.question += string(msg.Runes)
		return m, nil
	}
	return m, nil
}

func (m Model) sessionRequest(now time.Time) api.CreateSessionRequest {
	return api.CreateSessionRequest{
		Title:         "Transcrição " + now.Format("02/01/2006 15:04"),
		Transcription: m.transcript,
		Language:      m.languageCode,
		Duration:      m.recordingSeconds,
		WordCount:     m.wordCount,
		Metadata: map[string]any{
			"liveSessionId": m.sessionID,
			"enhancedMode":  m.enhancedMode,
		},
	}
}

func (m *Model) scrollToBottom() {
	m.transcriptScroll = m.maxTranscriptScroll()
}

func (m Model) transcriptLines() []string {
	lines := wrapText(m.transcript, m.contentWidth())
	if m.transcript == "" {
		lines = nil
	}
	if m.interim != "" {
		lines = append(lines, wrapText(m.interim, m.contentWidth())...)
	}
	return lines
}

func (m Model) maxTranscriptScroll() int {
	total := len(m.transcriptLines())
	visible := m.transcriptVisibleLines()
	if total <= visible {
		return 0
	}
	return total - visible
}

func (m Model) transcriptVisibleLines() int {
	if m.height == 0 {
		return 20
	}
	// header, status, two dividers, enrichment panel, error, footer
	reserved := 12
	return max(5, m.height-reserved)
}

func (m Model) contentWidth() int {
	if m.width == 0 {
		return 80
	}
	return max(20, m.width-2)
}

// View renders the full TUI.
func (m Model) View() string {
	if m.width == 0 {
		return "Initializing..."
	}

	rule := DividerStyle.Render(strings.Repeat("─", m.width))
	sections := []string{
		m.renderHeader(),
		m.renderStatusBar(),
		rule,
		m.renderTranscript(),
		rule,
	}
	if panel := m.renderEnrichment(); panel != "" {
		sections = append(sections, panel)
	}
	if m.errorMessage != "" {
		sections = append(sections, m.renderErrorBar())
	}
	sections = append(sections, m.renderFooter())
	return strings.Join(sections, "\n")
}

func (m Model) renderHeader() string {
	header := TitleStyle.Render("LIVESCRIBE")
	header += " " + LanguageStyle.Render(m.languageName)
	if m.enhancedMode {
		header += " " + EnhancedBadgeStyle.Render("[IA]")
	}
	if m.detected != "" {
		header += DimStyle.Render("  detectado: " + m.detected)
	}
	return header
}

func (m Model) renderStatusBar() string {
	var dot string
	if m.recording {
		dot = RecordingDotStyle.Render("● REC " + formatClock(m.recordingSeconds))
	} else {
		dot = IdleDotStyle.Render("○ PARADO")
	}

	var level string
	if m.recording {
		level = "  " + renderLevelMeter(m.audioLevel)
	}

	words := DimStyle.Render(fmt.Sprintf("  %d palavras", m.wordCount))

	var status string
	if m.statusText != "" {
		status = "  " + DimStyle.Render(m.statusText)
	}
	if !m.connected && m.connError != "" {
		status = "  " + ErrorTextStyle.Render(m.connError)
	}
	return dot + level + words + status
}

func formatClock(seconds int) string {
	return fmt.Sprintf("%02d:%02d", seconds/60, seconds%60)
}

func renderLevelMeter(percent int) string {
	const barLen = 10
	filled := min(max(percent, 0)*barLen/100, barLen)

	var bar strings.Builder
	for i := 0; i < barLen; i++ {
		switch {
		case i >= filled:
			bar.WriteString(LevelGrayStyle.Render("░"))
		case i > barLen*6/10:
			bar.WriteString(LevelYellowStyle.Render("█"))
		default:
			bar.WriteString(LevelGreenStyle.Render("█"))
		}
	}
	return DimStyle.Render("MIC ") + bar.String()
}

func (m Model) renderTranscript() string {
	width := m.contentWidth()
	visible := m.transcriptVisibleLines()

	final := wrapText(m.transcript, width)
	if m.transcript == "" {
		final = nil
	}
	var lines []string
	lines = append(lines, final...)
	if m.interim != "" {
		for _, l := range wrapText(m.interim, width) {
			lines = append(lines, InterimTextStyle.Render(l))
		}
	}
	if len(lines) == 0 {
		lines = []string{DimStyle.Render("Pressione Espaço para começar a gravar.")}
	}

	start := min(m.transcriptScroll, max(0, len(lines)-1))
	end := min(start+visible, len(lines))
	out := lines[start:end]
	for len(out) < visible {
		out = append(out, "")
	}
	return strings.Join(out, "\n")
}

func (m Model) renderEnrichment() string {
	width := m.contentWidth()
	switch {
	case m.mode == ModeAsk:
		return PanelTitleStyle.Render("Pergunta: ") + m.question + "█"
	case m.thinking:
		return DimStyle.Render("⟳ Consultando IA...")
	case m.answer != nil:
		title := PanelTitleStyle.Render(truncateToWidth(m.answer.Question, width))
		body := AnswerStyle.Render(strings.Join(wrapText(m.answer.Answer, width), "\n"))
		return title + "\n" + body + DimStyle.Render(fmt.Sprintf("  (%.0f%%)", m.answer.Confidence*100))
	case m.summary != "":
		return PanelTitleStyle.Render("Resumo") + "\n" + AnswerStyle.Render(strings.Join(wrapText(m.summary, width), "\n"))
	}
	return ""
}

func (m Model) renderErrorBar() string {
	return ErrorStyle.Render("Erro: ") + ErrorTextStyle.Render(m.errorMessage)
}

func (m Model) renderFooter() string {
	key := func(k, desc string) string {
		return FooterKeyStyle.Render(k) + FooterDescStyle.Render(" "+desc)
	}
	if m.mode == ModeAsk {
		return key("Enter", "Perguntar") + "  " + key("Esc", "Cancelar")
	}

	var parts []string
	if m.connected {
		if m.recording {
			parts = append(parts, key("Espaço", "Parar"))
		} else {
			parts = append(parts, key("Espaço", "Gravar"))
		}
		parts = append(parts,
			key("c", "Limpar"),
			key("l", "Idioma"),
			key("e", "Modo IA"),
			key("s", "Resumo"),
			key("?", "Perguntar"),
			key("w", "Salvar"),
		)
	}
	parts = append(parts, key("q", "Sair"))
	return strings.Join(parts, "  ")
}

func truncateToWidth(s string, width int) string {
	if lipgloss.Width(s) <= width {
		return s
	}
	runes := []rune(s)
	if len(runes) > width-1 {
		return string(runes[:width-1]) + "…"
	}
	return s
}

func wrapText(text string, width int) []string {
	if width <= 0 {
		return []string{text}
	}

	var lines []string
	for _, paragraph := range strings.Split(text, "\n") {
		var current string
		for _, word := range strings.Fields(paragraph) {
			switch {
			case current == "":
				current = word
			case len([]rune(current))+1+len([]rune(word)) <= width:
				current += " " + word
			default:
				lines = append(lines, current)
				current = word
			}
		}
		lines = append(lines, current)
	}
	if len(lines) == 0 {
		return []string{""}
	}
	return lines
}
