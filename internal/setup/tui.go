// Package setup is the interactive wizard that writes a botboard config file.
package setup

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/pkg/errors"
	"github.com/vadiminshakov/botboard/config"
)

// DefaultFilename is where RunTUI writes the generated config.
const DefaultFilename = "config.gen.yaml"

var (
	subtle    = lipgloss.AdaptiveColor{Light: "#D9DCCF", Dark: "#383838"}
	highlight = lipgloss.AdaptiveColor{Light: "#874BFD", Dark: "#7D56F4"}
	special   = lipgloss.AdaptiveColor{Light: "#43BF6D", Dark: "#73F59F"}

	headerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("205")).
			Background(highlight).
			Padding(1, 2).
			Bold(true).
			MarginBottom(1)

	stepStyle = lipgloss.NewStyle().
			Foreground(special).
			Bold(true).
			MarginTop(1).
			MarginBottom(0)
)

// Answers are the values collected by the wizard.
type Answers struct {
	Addr        string
	StoreKind   string
	Prefix      string
	Access      string
	BlobToken   string
	Bucket      string
	Region      string
	Endpoint    string
	SQLitePath  string
	IngestToken string
	JournalDir  string
	Refresh     string
}

// DefaultAnswers are preselected in the wizard.
func DefaultAnswers() Answers {
	return Answers{
		Addr:       ":8080",
		StoreKind:  string(config.StoreHTTP),
		Prefix:     "kosdaqpi/",
		Access:     "public",
		SQLitePath: "botboard.db",
		JournalDir: "./wal/snapshots",
		Refresh:    "15s",
	}
}

// ConfigTmp converts the answers into a config document. Empty secrets are omitted and
// come from the environment at load time.
func (a Answers) ConfigTmp() config.ConfigTmp {
	tmp := config.ConfigTmp{
		Addr:        a.Addr,
		IngestToken: a.IngestToken,
		JournalDir:  a.JournalDir,
		Store: config.StoreConfigTmp{
			Kind:   a.StoreKind,
			Prefix: a.Prefix,
			Access: a.Access,
		},
		Monitor: config.MonitorTmp{RefreshStr: a.Refresh},
	}

	switch config.StoreKind(a.StoreKind) {
	case config.StoreHTTP:
		tmp.Store.Token = a.BlobToken
	case config.StoreS3:
		tmp.Store.Bucket = a.Bucket
		tmp.Store.Region = a.Region
		tmp.Store.Endpoint = a.Endpoint
	case config.StoreSQLite:
		tmp.Store.Path = a.SQLitePath
	}
	return tmp
}

// Write validates the answers and writes them as yaml to filename.
func (a Answers) Write(filename string) error {
	tmp := a.ConfigTmp()
	if _, err := tmp.Parse(); err != nil {
		return errors.Wrap(err, "invalid answers")
	}

	data, err := tmp.Marshal()
	if err != nil {
		return err
	}
	if err := os.WriteFile(filename, data, 0o600); err != nil {
		return errors.Wrap(err, "failed to save config file")
	}
	return nil
}

func showStep(title string) {
	fmt.Print("\033[H\033[2J")
	fmt.Println(headerStyle.Render("BOTBOARD CONFIG WIZARD"))
	fmt.Println(stepStyle.Render(title))
}

// RunTUI launches the terminal configuration wizard and writes filename.
func RunTUI(filename string) error {
	if filename == "" {
		filename = DefaultFilename
	}
	a := DefaultAnswers()
	var confirm bool

	fmt.Print("\033[H\033[2J")
	fmt.Println(headerStyle.Render("BOTBOARD CONFIG WIZARD"))
	fmt.Println(lipgloss.NewStyle().Foreground(subtle).Render("Point your trading bot at a dashboard.\n"))

	fmt.Println(stepStyle.Render("STEP 1: STORAGE"))
	err := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Where should snapshots be stored?").
				Options(
					huh.NewOption("Hosted blob store (HTTP API)", string(config.StoreHTTP)),
					huh.NewOption("S3 bucket", string(config.StoreS3)),
					huh.NewOption("Local SQLite file", string(config.StoreSQLite)),
					huh.NewOption("In memory (testing only)", string(config.StoreMemory)),
				).
				Value(&a.StoreKind),
			huh.NewInput().
				Title("Key prefix").
				Description("Both objects live under this prefix").
				Value(&a.Prefix).
				Validate(func(s string) error {
					if strings.TrimSpace(s) == "" {
						return fmt.Errorf("prefix cannot be empty")
					}
					return nil
				}),
			huh.NewSelect[string]().
				Title("Access class").
				Options(
					huh.NewOption("Public", "public"),
					huh.NewOption("Private", "private"),
				).
				Value(&a.Access),
		),
	).Run()
	if err != nil {
		return err
	}

	var storeFields []huh.Field
	switch config.StoreKind(a.StoreKind) {
	case config.StoreHTTP:
		storeFields = append(storeFields, huh.NewInput().
			Title("Blob read/write token").
			Description("Leave empty to use " + config.EnvBlobToken).
			Value(&a.BlobToken).
			EchoMode(huh.EchoModePassword))
	case config.StoreS3:
		storeFields = append(storeFields,
			huh.NewInput().Title("Bucket").Value(&a.Bucket).Validate(notEmpty("bucket")),
			huh.NewInput().Title("Region").Description("e.g. ap-northeast-2").Value(&a.Region),
			huh.NewInput().Title("Endpoint").Description("Optional, for S3 compatible stores").Value(&a.Endpoint),
		)
	case config.StoreSQLite:
		storeFields = append(storeFields,
			huh.NewInput().Title("Database file").Value(&a.SQLitePath).Validate(notEmpty("path")))
	}
	if len(storeFields) > 0 {
		showStep("STEP 2: STORE SETTINGS")
		if err := huh.NewForm(huh.NewGroup(storeFields...)).Run(); err != nil {
			return err
		}
	}

	showStep("STEP 3: SERVER")
	err = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Listen address").
				Value(&a.Addr).
				Validate(notEmpty("address")),
			huh.NewInput().
				Title("Ingest token").
				Description("Shared secret the bot sends; leave empty to use " + config.EnvIngestToken).
				Value(&a.IngestToken).
				EchoMode(huh.EchoModePassword),
			huh.NewInput().
				Title("Journal directory").
				Description("Local log feeding the live stream").
				Value(&a.JournalDir),
			huh.NewSelect[string]().
				Title("Monitor auto refresh").
				Options(refreshOptions()...).
				Value(&a.Refresh),
		),
	).Run()
	if err != nil {
		return err
	}

	showStep("FINAL CONFIRMATION")
	summary := fmt.Sprintf(
		"Store: %s\nPrefix: %s\nAccess: %s\nAddress: %s\nRefresh: %s\n",
		a.StoreKind, a.Prefix, a.Access, a.Addr, a.Refresh,
	)
	fmt.Println(lipgloss.NewStyle().Border(lipgloss.NormalBorder()).Padding(1).Render(summary))

	err = huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title("Save Configuration?").
				Affirmative("Yes, save").
				Negative("No, exit").
				Value(&confirm),
		),
	).Run()
	if err != nil {
		return err
	}
	if !confirm {
		return errors.New("setup cancelled by user")
	}

	if err := a.Write(filename); err != nil {
		return err
	}

	fmt.Println(lipgloss.NewStyle().Foreground(special).Render(fmt.Sprintf("\n✓ Configuration saved to %s", filename)))
	time.Sleep(1500 * time.Millisecond)
	return nil
}

func refreshOptions() []huh.Option[string] {
	opts := make([]huh.Option[string], 0, len(config.RefreshChoices))
	for _, d := range config.RefreshChoices {
		if d == 0 {
			opts = append(opts, huh.NewOption("Off", "off"))
			continue
		}
		secs := strconv.Itoa(int(d / time.Second))
		opts = append(opts, huh.NewOption(secs+" seconds", d.String()))
	}
	return opts
}

func notEmpty(what string) func(string) error {
	return func(s string) error {
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("%s cannot be empty", what)
		}
		return nil
	}
}
