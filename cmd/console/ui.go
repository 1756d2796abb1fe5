package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/jwebster45206/affinity-engine/pkg/state"
	"github.com/jwebster45206/affinity-engine/pkg/story"
	"github.com/muesli/reflow/wordwrap"
)

const (
	CharacterName   = "Cha Hae-In"
	PlaceHolderText = "Type a choice number or /help..."
)

// logEntry is one line of the story log. Entries are re-wrapped on resize.
type logEntry struct {
	speaker string
	text    string
	style   lipgloss.Style
}

// ConsoleUI is the BubbleTea model that runs the UI.
// https://github.com/charmbracelet/bubbletea
type ConsoleUI struct {
	api          *apiClient
	profile      *state.PlayerState
	logViewport  viewport.Model
	metaViewport viewport.Model
	textarea     textarea.Model
	ready        bool
	width        int
	height       int
	loading      bool

	entries []logEntry

	// Current scene and the choices offered in it
	scene   string
	choices []story.Choice
	optimal map[string]bool

	showQuitModal bool
}

// apiResultMsg carries the outcome of any API call back into Update.
type apiResultMsg struct {
	entries []logEntry
	profile *state.PlayerState
	scene   *sceneResponse
	err     error
}

type sseEventMsg SSEEvent

var (
	logPanelStyle = lipgloss.NewStyle().
			PaddingTop(2).
			PaddingBottom(1).
			PaddingLeft(3).
			PaddingRight(0)

	metaPanelStyle = lipgloss.NewStyle().
			PaddingTop(2).
			PaddingBottom(0).
			PaddingLeft(0).
			PaddingRight(2)

	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("205")). // pink
			Bold(true)

	speakerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("212")). // purple
			Bold(true)

	systemStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("86")) // green

	userStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("39")) // teal

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")) // red

	optimalStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214")) // yellow

	promptStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")) // dark grey

	modalStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("62")).
			Padding(1, 2).
			Background(lipgloss.Color("235")).
			Foreground(lipgloss.Color("255"))

	modalTitleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("205")).
			Bold(true).
			Align(lipgloss.Center)
)

var separatorStyle = lipgloss.NewStyle().
	Foreground(lipgloss.Color("240")) // dark grey

var usageEntry = logEntry{text: "Missing arguments. Type /help.", style: errorStyle}

const helpText = `Commands:
• 1..n                    - pick a choice in the current scene
• /scene <SCENE>          - show choices, e.g. /scene FIRST_MEETING
• /greet <location> [act] - hear her greeting at a location
• /episodes               - list episodes you can start
• /start <episode>        - start an episode
• /event <name> [k=v ...] - report an event, e.g. /event location_visited location_id=hunter_association
• /time <time_of_day>     - morning, afternoon, evening or night
• /inbox                  - read communicator messages
• /copy                   - copy your profile id
• Ctrl+C                  - quit`

func NewConsoleUI(api *apiClient, profile *state.PlayerState) ConsoleUI {
	ta := textarea.New()
	ta.Placeholder = PlaceHolderText
	ta.Focus()
	ta.Prompt = promptStyle.Render(":: ")
	ta.CharLimit = 500
	ta.SetWidth(50)
	ta.SetHeight(2)
	ta.ShowLineNumbers = false

	logVp := viewport.New(50, 20)
	logVp.MouseWheelEnabled = true

	return ConsoleUI{
		api:          api,
		profile:      profile,
		textarea:     ta,
		logViewport:  logVp,
		metaViewport: viewport.New(20, 20),
		entries: []logEntry{
			{text: "Welcome, Hunter. Type /help to see what you can do.", style: systemStyle},
		},
	}
}

func writeMetadata(ps *state.PlayerState) string {
	var content strings.Builder
	content.WriteString(titleStyle.Render("RELATIONSHIP") + "\n\n")

	content.WriteString("Profile:\n")
	if len(ps.ProfileID) > 8 {
		content.WriteString(ps.ProfileID[:8] + "...\n\n")
	} else {
		content.WriteString(ps.ProfileID + "\n\n")
	}

	content.WriteString(fmt.Sprintf("Stage: %s\n", ps.RomanticProgression.DisplayName()))
	content.WriteString(fmt.Sprintf("Affection: %d\n", ps.AffectionLevel))
	content.WriteString(fmt.Sprintf("Intimacy:  %d\n", ps.IntimacyLevel))
	content.WriteString(fmt.Sprintf("Trust:     %d\n\n", ps.TrustLevel))

	content.WriteString(fmt.Sprintf("Level %d  (%d xp)\n", ps.PlayerLevel, ps.Experience))
	content.WriteString(fmt.Sprintf("Gold: %d\n", ps.Gold))
	content.WriteString(fmt.Sprintf("Time: %s\n\n", ps.TimeOfDay))

	if ps.ChaMood != "" {
		content.WriteString(fmt.Sprintf("Her mood: %s\n", ps.ChaMood))
	}
	if ps.ChaLocationOverride != nil {
		content.WriteString(fmt.Sprintf("She is at: %s\n", ps.ChaLocationOverride.LocationID))
	}
	if ps.ActiveEpisode != "" {
		content.WriteString(fmt.Sprintf("\nEpisode: %s (beat %d)\n", ps.ActiveEpisode, ps.ActiveBeat))
	}
	if ps.QuestObjective != "" {
		content.WriteString("Objective:\n" + ps.QuestObjective + "\n")
	}

	content.WriteString("\nPaths:\n")
	for _, p := range ps.UnlockedPaths {
		content.WriteString(fmt.Sprintf("• %s (%d)\n", p, ps.PathProgress[p]))
	}

	content.WriteString(fmt.Sprintf("\nFlags: %d  Memories: %d\n", len(ps.StoryFlags), len(ps.MemoryBank)))
	return content.String()
}

// writeLogContent rebuilds the story log for the current viewport width.
func (m *ConsoleUI) writeLogContent() {
	width := m.logViewport.Width - 6
	if width < 20 {
		width = 20
	}

	var content strings.Builder
	content.WriteString(titleStyle.Render("AFFINITY ENGINE") + "\n\n")
	content.WriteString(separatorStyle.Render(strings.Repeat("─", width)) + "\n\n")

	for _, e := range m.entries {
		if e.speaker != "" {
			prefix := e.speaker + ": "
			content.WriteString(speakerStyle.Render(prefix))
			content.WriteString(e.style.Render(wordwrap.String(e.text, width-len(prefix))))
		} else {
			content.WriteString(e.style.Render(wordwrap.String(e.text, width)))
		}
		content.WriteString("\n\n")
	}

	if len(m.choices) > 0 {
		content.WriteString(titleStyle.Render(m.scene) + "\n")
		for i, c := range m.choices {
			line := fmt.Sprintf("%d. %s", i+1, c.Text)
			if m.optimal[c.ID] {
				line = optimalStyle.Render(line + " ★")
			}
			content.WriteString(wordwrap.String(line, width) + "\n")
		}
		content.WriteString("\n")
	}

	if m.loading {
		content.WriteString(promptStyle.Render("...") + "\n")
	}

	m.logViewport.SetContent(content.String())
	m.logViewport.GotoBottom()
}

func (m *ConsoleUI) addEntries(entries ...logEntry) {
	m.entries = append(m.entries, entries...)
}

func (m ConsoleUI) Init() tea.Cmd {
	return textarea.Blink
}

func (m ConsoleUI) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if m.showQuitModal {
		return m.updateQuitModal(msg)
	}

	var (
		tiCmd tea.Cmd
		vpCmd tea.Cmd
	)

	switch msg := msg.(type) {
	case tea.MouseMsg:
		m.logViewport, vpCmd = m.logViewport.Update(msg)
		return m, vpCmd

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

		logWidth := int(float64(m.width)*0.7) - 4
		metaWidth := m.width - logWidth - 6

		m.logViewport.Width = logWidth - 2
		m.logViewport.Height = m.height - 6
		m.metaViewport.Width = metaWidth - 2
		m.metaViewport.Height = m.height - 4
		m.textarea.SetWidth(logWidth - 4)

		m.ready = true
		m.writeLogContent()
		m.metaViewport.SetContent(writeMetadata(m.profile))

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			m.showQuitModal = true
			return m, nil
		case tea.KeyEnter:
			if m.loading {
				return m, nil
			}
			input := strings.TrimSpace(m.textarea.Value())
			m.textarea.Reset()
			if input == "" {
				return m, nil
			}
			return m.handleInput(input)
		}

	case apiResultMsg:
		m.loading = false
		if msg.err != nil {
			m.addEntries(logEntry{text: "Error: " + msg.err.Error(), style: errorStyle})
		}
		m.addEntries(msg.entries...)
		if msg.profile != nil {
			m.profile = msg.profile
			m.metaViewport.SetContent(writeMetadata(m.profile))
		}
		if msg.scene != nil {
			m.scene = msg.scene.Scene
			m.choices = msg.scene.Choices
			m.optimal = make(map[string]bool, len(msg.scene.Optimal))
			for _, id := range msg.scene.Optimal {
				m.optimal[id] = true
			}
		}
		m.writeLogContent()
		return m, nil

	case sseEventMsg:
		if entry, ok := describeEvent(SSEEvent(msg)); ok {
			m.addEntries(entry)
			m.writeLogContent()
		}
		// the event may have changed the profile server-side
		return m, m.refreshProfile()
	}

	m.textarea, tiCmd = m.textarea.Update(msg)
	m.logViewport, vpCmd = m.logViewport.Update(msg)

	return m, tea.Batch(tiCmd, vpCmd)
}

func (m ConsoleUI) handleInput(input string) (tea.Model, tea.Cmd) {
	if n, err := strconv.Atoi(input); err == nil {
		if n < 1 || n > len(m.choices) {
			m.addEntries(logEntry{text: "No such choice. Use /scene first.", style: errorStyle})
			m.writeLogContent()
			return m, nil
		}
		choice := m.choices[n-1]
		m.addEntries(logEntry{speaker: "You", text: choice.Text, style: userStyle})
		m.choices = nil
		return m.run(m.makeChoice(m.scene, choice))
	}

	fields := strings.Fields(input)
	cmd, args := strings.ToLower(fields[0]), fields[1:]

	switch cmd {
	case "/help":
		m.addEntries(logEntry{text: helpText, style: systemStyle})

	case "/scene":
		if len(args) != 1 {
			m.addEntries(usageEntry)
			break
		}
		return m.run(m.loadScene(strings.ToUpper(args[0])))

	case "/greet":
		if len(args) == 0 {
			m.addEntries(usageEntry)
			break
		}
		activity := ""
		if len(args) > 1 {
			activity = args[1]
		}
		return m.run(m.greet(args[0], activity))

	case "/episodes":
		return m.run(m.listEpisodes())

	case "/start":
		if len(args) != 1 {
			m.addEntries(usageEntry)
			break
		}
		return m.run(m.startEpisode(args[0]))

	case "/event":
		if len(args) == 0 {
			m.addEntries(usageEntry)
			break
		}
		return m.run(m.sendEvent(args[0], parseParams(args[1:])))

	case "/time":
		if len(args) != 1 {
			m.addEntries(usageEntry)
			break
		}
		return m.run(m.setTime(args[0]))

	case "/inbox":
		return m.run(m.readInbox())

	case "/copy":
		if err := clipboard.WriteAll(m.profile.ProfileID); err != nil {
			m.addEntries(logEntry{text: "Could not copy: " + err.Error(), style: errorStyle})
		} else {
			m.addEntries(logEntry{text: "Profile id copied to clipboard.", style: systemStyle})
		}

	default:
		m.addEntries(logEntry{text: "Unknown command " + cmd + ". Type /help.", style: errorStyle})
	}

	m.writeLogContent()
	return m, nil
}

func (m ConsoleUI) run(cmd tea.Cmd) (tea.Model, tea.Cmd) {
	m.loading = true
	m.writeLogContent()
	return m, cmd
}

// parseParams turns key=value arguments into event data.
func parseParams(args []string) map[string]any {
	data := make(map[string]any, len(args))
	for _, a := range args {
		k, v, ok := strings.Cut(a, "=")
		if !ok {
			continue
		}
		if n, err := strconv.Atoi(v); err == nil {
			data[k] = n
		} else {
			data[k] = v
		}
	}
	return data
}

func describeEvent(ev SSEEvent) (logEntry, bool) {
	switch ev.Type {
	case "profile.path_unlocked":
		return logEntry{text: fmt.Sprintf("New story path unlocked: %v", ev.Data["path_id"]), style: optimalStyle}, true
	case "inbox.message":
		return logEntry{text: fmt.Sprintf("New message from %v. Type /inbox.", ev.Data["sender"]), style: systemStyle}, true
	case "episode.completed":
		return logEntry{text: fmt.Sprintf("Episode %s complete.", ev.EpisodeID), style: optimalStyle}, true
	case "episode.deleted":
		return logEntry{text: fmt.Sprintf("Episode %s is no longer available.", ev.EpisodeID), style: promptStyle}, true
	}
	return logEntry{}, false
}

func (m ConsoleUI) refreshProfile() tea.Cmd {
	return func() tea.Msg {
		ps, err := m.api.getProfile(m.profile.ProfileID)
		return apiResultMsg{profile: ps, err: err}
	}
}

func (m ConsoleUI) loadScene(scene string) tea.Cmd {
	return func() tea.Msg {
		resp, err := m.api.getScene(m.profile.ProfileID, scene)
		if err != nil {
			return apiResultMsg{err: err}
		}
		if len(resp.Choices) == 0 {
			return apiResultMsg{entries: []logEntry{{text: "Nothing to say in " + scene + " right now.", style: promptStyle}}}
		}
		return apiResultMsg{scene: resp}
	}
}

func (m ConsoleUI) makeChoice(scene string, choice story.Choice) tea.Cmd {
	return func() tea.Msg {
		res, err := m.api.makeChoice(m.profile.ProfileID, scene, choice.ID)
		if err != nil {
			return apiResultMsg{err: err}
		}
		var entries []logEntry
		for _, p := range res.UnlockedPaths {
			entries = append(entries, logEntry{text: "Story path unlocked: " + p, style: optimalStyle})
		}
		return apiResultMsg{entries: entries, profile: res.Profile}
	}
}

func (m ConsoleUI) greet(location, activity string) tea.Cmd {
	return func() tea.Msg {
		text, err := m.api.greeting(m.profile.ProfileID, location, activity)
		if err != nil {
			return apiResultMsg{err: err}
		}
		return apiResultMsg{entries: []logEntry{{speaker: CharacterName, text: text, style: lipgloss.NewStyle()}}}
	}
}

func (m ConsoleUI) listEpisodes() tea.Cmd {
	return func() tea.Msg {
		eps, err := m.api.listEpisodes(m.profile.ProfileID)
		if err != nil {
			return apiResultMsg{err: err}
		}
		if len(eps) == 0 {
			return apiResultMsg{entries: []logEntry{{text: "No episodes available right now.", style: promptStyle}}}
		}
		var b strings.Builder
		b.WriteString("Available episodes:")
		for _, ep := range eps {
			b.WriteString(fmt.Sprintf("\n• %s - %s", ep.ID, ep.Title))
		}
		return apiResultMsg{entries: []logEntry{{text: b.String(), style: systemStyle}}}
	}
}

func (m ConsoleUI) startEpisode(episodeID string) tea.Cmd {
	return func() tea.Msg {
		ps, err := m.api.startEpisode(m.profile.ProfileID, episodeID)
		if err != nil {
			return apiResultMsg{err: err}
		}
		entries := []logEntry{{text: "Episode started: " + episodeID, style: optimalStyle}}
		if ps.QuestObjective != "" {
			entries = append(entries, logEntry{text: "Objective: " + ps.QuestObjective, style: systemStyle})
		}
		return apiResultMsg{entries: entries, profile: ps}
	}
}

func (m ConsoleUI) sendEvent(event string, data map[string]any) tea.Cmd {
	return func() tea.Msg {
		res, err := m.api.sendEvent(m.profile.ProfileID, event, data)
		if err != nil {
			return apiResultMsg{err: err}
		}
		var entries []logEntry
		switch {
		case res.EpisodeCompleted:
			entries = append(entries, logEntry{text: "Episode complete!", style: optimalStyle})
		case res.NextBeat != nil:
			entries = append(entries, logEntry{text: "Next: " + res.NextBeat.Title, style: systemStyle})
		case !res.Completed:
			entries = append(entries, logEntry{text: "Nothing happens.", style: promptStyle})
		}
		return apiResultMsg{entries: entries, profile: res.Profile}
	}
}

func (m ConsoleUI) setTime(timeOfDay string) tea.Cmd {
	return func() tea.Msg {
		ps, err := m.api.setTime(m.profile.ProfileID, timeOfDay)
		if err != nil {
			return apiResultMsg{err: err}
		}
		return apiResultMsg{entries: []logEntry{{text: "It is now " + timeOfDay + ".", style: promptStyle}}, profile: ps}
	}
}

func (m ConsoleUI) readInbox() tea.Cmd {
	return func() tea.Msg {
		msgs, err := m.api.inbox(m.profile.ProfileID)
		if err != nil {
			return apiResultMsg{err: err}
		}
		if len(msgs) == 0 {
			return apiResultMsg{entries: []logEntry{{text: "No new messages.", style: promptStyle}}}
		}
		entries := make([]logEntry, 0, len(msgs))
		for _, msg := range msgs {
			entries = append(entries, logEntry{speaker: msg.Sender, text: msg.Message, style: lipgloss.NewStyle()})
		}
		return apiResultMsg{entries: entries}
	}
}

func (m ConsoleUI) updateQuitModal(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc, tea.KeyEnter:
			return m, tea.Quit
		default:
			switch msg.String() {
			case "y", "Y":
				return m, tea.Quit
			case "n", "N":
				m.showQuitModal = false
				m.textarea.Focus()
				return m, textarea.Blink
			}
		}
	}

	return m, nil
}

func (m ConsoleUI) renderQuitModal() string {
	var content strings.Builder
	content.WriteString(modalTitleStyle.Render("Quit?"))
	content.WriteString("\n\n")
	content.WriteString("Your progress is saved under profile " + m.profile.ProfileID + ".")
	content.WriteString("\n\n")
	content.WriteString(promptStyle.Render("Press Y to quit, N to continue, or Ctrl+C to force quit"))

	modal := modalStyle.Width(50).Render(content.String())
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, modal, lipgloss.WithWhitespaceChars(" "))
}

func (m ConsoleUI) View() string {
	if !m.ready {
		return "\n  Initializing..."
	}

	if m.showQuitModal {
		return m.renderQuitModal()
	}

	logWidth := int(float64(m.width)*0.7) - 4
	metaWidth := m.width - logWidth - 6

	logPanel := logPanelStyle.Width(logWidth).Height(m.height - 3).Render(
		lipgloss.JoinVertical(lipgloss.Left,
			m.logViewport.View(),
			"",
			separatorStyle.Render(strings.Repeat("─", logWidth-4)),
			m.textarea.View(),
		),
	)

	metaPanel := metaPanelStyle.Width(metaWidth).Height(m.height - 2).Render(
		m.metaViewport.View(),
	)

	return lipgloss.JoinHorizontal(lipgloss.Top, logPanel, metaPanel)
}
