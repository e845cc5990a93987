package ui

import (
	"context"
	"fmt"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/desertthunder/crate/internal/events"
	"github.com/desertthunder/crate/internal/models"
	"github.com/desertthunder/crate/internal/queue"
)

// ViewState represents the current view in the TUI.
type ViewState int

const (
	LibraryView ViewState = iota
	PlaylistsView
	PlaylistDetailView
)

// chromeHeight is the rows taken by the now-playing bar, status line and help.
const chromeHeight = 6

// Library is what the TUI reads and mutates. *library.Library satisfies it.
type Library interface {
	queue.Actions
	ListSongs(ctx context.Context) ([]models.Song, error)
	OrderedPlaylists(ctx context.Context) ([]models.PlaylistSongs, error)
}

// Options configures optional collaborators of [NewModel].
type Options struct {
	Changes <-chan events.Event // Library change notifications that trigger a re-fetch
	Rand    *rand.Rand          // Shuffle source; nil uses the global source
	Now     func() time.Time    // Clock for the now-playing bar; nil uses time.Now
}

// modal is an open prompt for a pending action.
type modal struct {
	action queue.PendingAction
	input  textinput.Model
}

// Model represents the TUI application state.
type Model struct {
	ctx     context.Context
	lib     Library
	state   *queue.State
	deck    *deck
	changes <-chan events.Event

	view      ViewState
	songs     list.Model
	playlists list.Model
	detail    list.Model
	filter    textinput.Model
	filtering bool
	modal     *modal

	status    string
	statusErr bool
	width     int
	height    int
	help      help.Model
	keys      keyMap
}

// NewModel creates a new TUI model over lib.
func NewModel(ctx context.Context, lib Library, opts Options) *Model {
	d := newDeck(opts.Now)

	filter := textinput.New()
	filter.Prompt = "/ "
	filter.Placeholder = "filter by name or artist"

	return &Model{
		ctx:       ctx,
		lib:       lib,
		state:     queue.NewState(queue.New(d), opts.Rand),
		deck:      d,
		changes:   opts.Changes,
		view:      LibraryView,
		songs:     newList("Library"),
		playlists: newList("Playlists"),
		detail:    newList("Playlist"),
		filter:    filter,
		help:      help.New(),
		keys:      newKeyMap(),
	}
}

// State exposes the application state the model renders.
func (m *Model) State() *queue.State { return m.state }

// Init loads the library and starts the clock and change listener.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.load(), m.tick(), m.waitForChange())
}

// Update handles incoming messages and updates the model state.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.resize()
		return m, nil

	case Msg:
		return m, m.handleMsg(msg)

	case tea.KeyMsg:
		switch {
		case m.modal != nil:
			return m, m.handleModalKeys(msg)
		case m.filtering:
			return m, m.handleFilterKeys(msg)
		default:
			return m.handleKeys(msg)
		}
	}

	return m.updateLists(msg)
}

func (m *Model) handleMsg(msg Msg) tea.Cmd {
	q := m.state.Queue()

	switch msg.kind {
	case MsgLibraryLoaded:
		data := msg.data.(libraryLoaded)
		if data.err != nil {
			m.setStatus(fmt.Sprintf("Failed to load library: %v", data.err), true)
			return nil
		}
		m.state.SetLibrary(data.songs, data.playlists)
		m.refreshLists()
		return m.reconcilePlayback()

	case MsgActionResolved:
		data := msg.data.(actionResolved)
		if data.err != nil {
			m.setStatus(data.err.Error(), true)
		} else {
			m.setStatus(data.status, false)
		}
		return m.load()

	case MsgLibraryChanged:
		return tea.Batch(m.load(), m.waitForChange())

	case MsgPlaybackEnded:
		outcome, song, err := q.OnPlaybackEnded(msg.data.(uint64))
		switch outcome {
		case queue.Ignored:
			return nil
		case queue.Exhausted:
			m.deck.Stop()
			m.setStatus("End of queue", false)
			m.refreshLists()
			return nil
		default:
			return m.afterMove(song, err)
		}

	case MsgContinue:
		if msg.data.(uint64) != q.Generation() || q.Pointer() != -1 {
			return nil
		}
		song, err := q.Advance()
		return m.afterMove(song, err)

	case MsgTick:
		return m.tick()
	}
	return nil
}

func (m *Model) handleKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	q := m.state.Queue()

	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.help):
		m.help.ShowAll = !m.help.ShowAll
		m.resize()
		return m, nil
	case key.Matches(msg, m.keys.tab):
		if m.view == LibraryView {
			m.view = PlaylistsView
		} else {
			m.view = LibraryView
		}
		return m, nil
	case key.Matches(msg, m.keys.next):
		song, err := q.Advance()
		return m, m.afterMove(song, err)
	case key.Matches(msg, m.keys.prev):
		song, err := q.Retreat()
		return m, m.afterMove(song, err)
	case key.Matches(msg, m.keys.end):
		// Finishes the current track as if playback ran out, for songs with no known duration.
		if _, ok := q.Current(); !ok {
			return m, nil
		}
		return m, m.handleMsg(playbackEndedMsg(q.Generation()))
	case key.Matches(msg, m.keys.shuffle):
		if m.state.ToggleShuffle() {
			m.setStatus("Shuffle on", false)
		} else {
			m.setStatus("Shuffle off", false)
		}
		m.refreshLists()
		return m, m.reconcilePlayback()
	case key.Matches(msg, m.keys.repeat):
		m.setStatus("Repeat "+strings.ToLower(q.CycleRepeat().String()), false)
		return m, nil
	}

	switch m.view {
	case LibraryView:
		return m.handleLibraryKeys(msg)
	case PlaylistsView:
		return m.handlePlaylistsKeys(msg)
	case PlaylistDetailView:
		return m.handleDetailKeys(msg)
	}
	return m, nil
}

func (m *Model) handleLibraryKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	selected, hasSelection := m.songs.SelectedItem().(songItem)

	switch {
	case key.Matches(msg, m.keys.enter):
		if !hasSelection {
			return m, nil
		}
		song, err := m.state.PlayAll(m.songs.Index())
		return m, m.afterMove(song, err)
	case key.Matches(msg, m.keys.shuffleQ):
		song, err := m.state.ShuffleAll()
		return m, m.afterMove(song, err)
	case key.Matches(msg, m.keys.filter):
		m.filtering = true
		return m, m.filter.Focus()
	case key.Matches(msg, m.keys.back):
		if m.state.Filter() != "" {
			m.filter.SetValue("")
			m.state.SetFilter("")
			m.refreshLists()
		}
		return m, nil
	case key.Matches(msg, m.keys.create):
		return m, m.openModal(queue.CreatePlaylistAction{})
	case key.Matches(msg, m.keys.add) && hasSelection:
		return m, m.openModal(queue.AddToPlaylistAction{SongID: selected.song.ID})
	case key.Matches(msg, m.keys.rename) && hasSelection:
		return m, m.openModal(queue.RenameSongAction{ID: selected.song.ID})
	case key.Matches(msg, m.keys.remove) && hasSelection:
		return m, m.openModal(queue.DeleteSongAction{ID: selected.song.ID})
	}

	var cmd tea.Cmd
	m.songs, cmd = m.songs.Update(msg)
	return m, cmd
}

func (m *Model) handlePlaylistsKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	selected, hasSelection := m.playlists.SelectedItem().(playlistItem)

	switch {
	case key.Matches(msg, m.keys.enter) && hasSelection:
		if err := m.state.SelectPlaylist(selected.playlist.Name); err != nil {
			m.setStatus(err.Error(), true)
			return m, nil
		}
		m.view = PlaylistDetailView
		m.detail.ResetSelected()
		m.refreshLists()
		return m, nil
	case key.Matches(msg, m.keys.shuffleQ) && hasSelection:
		song, err := m.state.ShufflePlaylist(selected.playlist.Name)
		return m, m.afterMove(song, err)
	case key.Matches(msg, m.keys.create):
		return m, m.openModal(queue.CreatePlaylistAction{})
	case key.Matches(msg, m.keys.rename) && hasSelection:
		return m, m.openModal(queue.RenamePlaylistAction{Name: selected.playlist.Name})
	case key.Matches(msg, m.keys.remove) && hasSelection:
		return m, m.openModal(queue.DeletePlaylistAction{Name: selected.playlist.Name})
	}

	var cmd tea.Cmd
	m.playlists, cmd = m.playlists.Update(msg)
	return m, cmd
}

func (m *Model) handleDetailKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	name := m.state.Selected()
	selected, hasSelection := m.detail.SelectedItem().(songItem)

	switch {
	case key.Matches(msg, m.keys.back):
		m.view = PlaylistsView
		return m, nil
	case key.Matches(msg, m.keys.enter) && hasSelection:
		song, err := m.state.PlayPlaylist(name, m.detail.Index())
		return m, m.afterMove(song, err)
	case key.Matches(msg, m.keys.shuffleQ):
		song, err := m.state.ShufflePlaylist(name)
		return m, m.afterMove(song, err)
	case key.Matches(msg, m.keys.add) && hasSelection:
		return m, m.openModal(queue.AddToPlaylistAction{SongID: selected.song.ID})
	case key.Matches(msg, m.keys.remove) && hasSelection:
		return m, m.openModal(queue.RemoveFromPlaylistAction{Playlist: name, SongID: selected.song.ID})
	}

	var cmd tea.Cmd
	m.detail, cmd = m.detail.Update(msg)
	return m, cmd
}

func (m *Model) handleFilterKeys(msg tea.KeyMsg) tea.Cmd {
	switch msg.Type {
	case tea.KeyEsc:
		m.filtering = false
		m.filter.Blur()
		m.filter.SetValue("")
		m.state.SetFilter("")
		m.refreshLists()
		return nil
	case tea.KeyEnter:
		m.filtering = false
		m.filter.Blur()
		return nil
	}

	var cmd tea.Cmd
	m.filter, cmd = m.filter.Update(msg)
	m.state.SetFilter(m.filter.Value())
	m.songs.ResetSelected()
	m.refreshLists()
	return cmd
}

func (m *Model) openModal(action queue.PendingAction) tea.Cmd {
	md := &modal{action: action}
	if !action.NeedsInput() {
		m.modal = md
		return nil
	}

	md.input = textinput.New()
	switch a := action.(type) {
	case queue.RenameSongAction:
		md.input.SetValue(models.DisplayName(a.ID))
	case queue.RenamePlaylistAction:
		md.input.SetValue(a.Name)
	case queue.AddToPlaylistAction:
		if sel := m.state.Selected(); sel != "" {
			md.input.SetValue(sel)
		}
		md.input.Placeholder = "playlist name"
	}
	md.input.CursorEnd()
	m.modal = md
	return md.input.Focus()
}

func (m *Model) handleModalKeys(msg tea.KeyMsg) tea.Cmd {
	md := m.modal

	if md.action.NeedsInput() {
		switch msg.Type {
		case tea.KeyEsc:
			m.modal = nil
			return nil
		case tea.KeyEnter:
			return m.resolve(md.action, md.input.Value())
		}
		var cmd tea.Cmd
		md.input, cmd = md.input.Update(msg)
		return cmd
	}

	switch {
	case key.Matches(msg, m.keys.yes), msg.Type == tea.KeyEnter:
		return m.resolve(md.action, "")
	case key.Matches(msg, m.keys.no), key.Matches(msg, m.keys.quit):
		m.modal = nil
	}
	return nil
}

// resolve closes the modal and runs the action against the library off the event loop.
func (m *Model) resolve(action queue.PendingAction, input string) tea.Cmd {
	m.modal = nil
	ctx, lib := m.ctx, m.lib
	return func() tea.Msg {
		status, err := action.Resolve(ctx, lib, input)
		return actionResolvedMsg(status, err)
	}
}

// afterMove reports the result of a queue move and arms the ended timer for the new song.
func (m *Model) afterMove(song models.Song, err error) tea.Cmd {
	if err != nil {
		m.setStatus(err.Error(), true)
		return nil
	}
	m.setStatus("Playing "+song.Name, false)
	m.refreshLists()
	return m.scheduleEnd()
}

// scheduleEnd fires an ended message for the current song once its known duration elapses.
func (m *Model) scheduleEnd() tea.Cmd {
	q := m.state.Queue()
	song, ok := q.Current()
	if !ok || song.DurationSeconds <= 0 {
		return nil
	}
	generation := q.Generation()
	return tea.Tick(m.deck.Remaining(), func(time.Time) tea.Msg {
		return playbackEndedMsg(generation)
	})
}

// reconcilePlayback handles a queue that was reordered or pruned while a song kept sounding.
//
// The queue no longer points at that song, so its ended timer is stale. When it finishes the queue
// continues from the start of the new order.
func (m *Model) reconcilePlayback() tea.Cmd {
	q := m.state.Queue()
	if !m.deck.playing || q.Pointer() != -1 {
		return nil
	}
	if q.Len() == 0 {
		m.deck.Stop()
		return nil
	}

	remaining := m.deck.Remaining()
	if remaining <= 0 {
		return nil
	}
	generation := q.Generation()
	return tea.Tick(remaining, func(time.Time) tea.Msg {
		return continueMsg(generation)
	})
}

func (m *Model) load() tea.Cmd {
	ctx, lib := m.ctx, m.lib
	return func() tea.Msg {
		songs, err := lib.ListSongs(ctx)
		if err != nil {
			return libraryLoadedMsg(nil, nil, err)
		}
		playlists, err := lib.OrderedPlaylists(ctx)
		return libraryLoadedMsg(songs, playlists, err)
	}
}

func (m *Model) waitForChange() tea.Cmd {
	if m.changes == nil {
		return nil
	}
	changes := m.changes
	return func() tea.Msg {
		e, ok := <-changes
		if !ok {
			return nil
		}
		return libraryChangedMsg(e)
	}
}

func (m *Model) tick() tea.Cmd {
	return tea.Tick(time.Second, func(time.Time) tea.Msg { return tickMsg() })
}

func (m *Model) refreshLists() {
	current, _ := m.state.Queue().Current()

	m.songs.Title = "Library"
	if f := m.state.Filter(); f != "" {
		m.songs.Title = fmt.Sprintf("Library (filter: %s)", f)
	}
	m.songs.SetItems(songItems(m.state.VisibleSongs(), current.ID))
	m.playlists.SetItems(playlistItems(m.state.Playlists()))

	if m.view != PlaylistDetailView {
		return
	}
	name := m.state.Selected()
	if name == "" {
		m.view = PlaylistsView
		return
	}
	m.detail.Title = name
	m.detail.SetItems(songItems(m.state.PlaylistSongs(name), current.ID))
}

func (m *Model) resize() {
	chrome := chromeHeight
	if m.help.ShowAll {
		chrome += 4
	}
	h := max(m.height-chrome, 3)
	m.songs.SetSize(m.width, h)
	m.playlists.SetSize(m.width, h)
	m.detail.SetSize(m.width, h)
	m.help.Width = m.width
}

func (m *Model) updateLists(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	switch m.view {
	case LibraryView:
		m.songs, cmd = m.songs.Update(msg)
	case PlaylistsView:
		m.playlists, cmd = m.playlists.Update(msg)
	case PlaylistDetailView:
		m.detail, cmd = m.detail.Update(msg)
	}
	return m, cmd
}

func (m *Model) setStatus(status string, isErr bool) {
	m.status = status
	m.statusErr = isErr
}

// View renders the UI based on the current view state.
func (m *Model) View() string {
	var body string
	switch {
	case m.modal != nil:
		body = m.renderModal()
	case m.view == PlaylistsView:
		body = m.playlists.View()
	case m.view == PlaylistDetailView:
		body = m.detail.View()
	default:
		body = m.songs.View()
		if m.filtering {
			body = lipgloss.JoinVertical(lipgloss.Left, m.filter.View(), body)
		}
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		body,
		m.renderNowPlaying(),
		m.renderStatus(),
		m.help.View(m.keys),
	)
}

func (m *Model) renderModal() string {
	md := m.modal
	title := styles.title.Render(md.action.Prompt())

	if md.action.NeedsInput() {
		hint := styles.help.Render("enter to confirm • esc to cancel")
		return styles.modal.Render(lipgloss.JoinVertical(lipgloss.Left, title, md.input.View(), "", hint))
	}

	hint := m.help.ShortHelpView([]key.Binding{m.keys.yes, m.keys.no})
	return styles.modal.Render(lipgloss.JoinVertical(lipgloss.Left, title, hint))
}

func (m *Model) renderNowPlaying() string {
	q := m.state.Queue()

	shuffle := styles.dimmed.Render("shuffle off")
	if m.state.Shuffled() {
		shuffle = styles.active.Render("shuffle on")
	}
	repeat := styles.dimmed.Render("repeat off")
	if mode := q.Repeat(); mode != queue.RepeatOff {
		repeat = styles.active.Render("repeat " + strings.ToLower(mode.String()))
	}

	line := styles.dimmed.Render("■ nothing playing")
	if m.deck.playing {
		song := m.deck.song
		position := "-"
		if p := q.Pointer(); p >= 0 {
			position = fmt.Sprintf("%d/%d", p+1, q.Len())
		}
		line = fmt.Sprintf("▶ %s  %s / %s  [%s from %s]",
			styles.ok.Render(song.Name),
			clock(m.deck.Elapsed()),
			songLength(song),
			position,
			m.state.SourceLabel(),
		)
	}

	return styles.bar.Width(max(m.width, 1)).Render(fmt.Sprintf("%s   %s • %s", line, shuffle, repeat))
}

func (m *Model) renderStatus() string {
	if m.status == "" {
		return ""
	}
	if m.statusErr {
		return styles.err.Render(m.status)
	}
	return styles.warn.Render(m.status)
}

func clock(d time.Duration) string {
	s := int(d.Seconds())
	return fmt.Sprintf("%d:%02d", s/60, s%60)
}

func songLength(song models.Song) string {
	if song.DurationSeconds <= 0 {
		return "--:--"
	}
	return clock(time.Duration(song.DurationSeconds) * time.Second)
}
