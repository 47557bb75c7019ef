// Package app はコマンドラインアプリケーションの処理の流れをまとめる
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/hako/durafmt"
	"github.com/remeh/sizedwaitgroup"

	"github.com/zurustar/tunesync/pkg/cli"
	"github.com/zurustar/tunesync/pkg/event"
	"github.com/zurustar/tunesync/pkg/logger"
	"github.com/zurustar/tunesync/pkg/playback"
	"github.com/zurustar/tunesync/pkg/timeline"
)

// Application はアプリケーションのメインロジックを管理する
type Application struct {
	config *cli.Config
	log    *slog.Logger
	out    io.Writer // サマリの出力先
	logOut io.Writer // ログの出力先

	// sleep は演奏時の待機処理（nilの場合はタイマー）
	sleep func(ctx context.Context, d time.Duration) error
}

// New Applicationを作成
func New(out, logOut io.Writer) *Application {
	return &Application{
		out:    out,
		logOut: logOut,
	}
}

// Run アプリケーションを実行
func (app *Application) Run(args []string) error {
	// 1. コマンドライン引数の解析
	if err := app.parseArgs(args); err != nil {
		return fmt.Errorf("failed to parse args: %w", err)
	}

	if app.config.ShowHelp {
		cli.PrintHelp()
		return nil
	}

	// 2. ロガーの初期化
	if err := app.initLogger(); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	app.log.Info("Application started", "files", len(app.config.Files), "repeats", app.config.Repeats)

	// 3. 曲の読み込み（読み込めた曲のサマリは失敗があっても表示する）
	tunes, loadErr := app.loadTunes()
	for _, t := range tunes {
		if t != nil {
			app.printSummary(t)
		}
	}
	if loadErr != nil {
		return fmt.Errorf("failed to load tunes: %w", loadErr)
	}

	// 4. 演奏
	if app.config.Play {
		if err := app.play(tunes); err != nil {
			return fmt.Errorf("failed to play: %w", err)
		}
	}

	app.log.Info("Application terminated normally")
	return nil
}

// parseArgs コマンドライン引数を解析
func (app *Application) parseArgs(args []string) error {
	config, err := cli.ParseArgs(args)
	if err != nil {
		return err
	}
	app.config = config
	return nil
}

// initLogger ロガーを初期化
func (app *Application) initLogger() error {
	if err := logger.Init(app.logOut, app.config.LogLevel); err != nil {
		return err
	}
	app.log = logger.GetLogger()
	return nil
}

// loadTunes 全ての曲を並列に読み込む（並列数は --jobs）
// 戻り値の順序は引数の順序と同じで、失敗した曲は nil になる
func (app *Application) loadTunes() ([]*timeline.Tune, error) {
	opts := app.config.Options()
	files := app.config.Files

	tunes := make([]*timeline.Tune, len(files))
	errs := make([]error, len(files))

	wg := sizedwaitgroup.New(app.config.Jobs)
	for i, path := range files {
		wg.Add()
		go func(i int, path string) {
			defer wg.Done()
			o := opts
			o.Logger = logger.ForTune(path)
			tunes[i], errs[i] = timeline.Load(path, o)
			if errs[i] != nil {
				o.Logger.Error("Failed to load tune", "error", errs[i])
			}
		}(i, path)
	}
	wg.Wait()

	return tunes, errors.Join(errs...)
}

// printSummary 曲の情報を表示
func (app *Application) printSummary(t *timeline.Tune) {
	s := t.Summary()
	w := app.out

	key := s.Key
	if key == "" {
		key = "unknown"
	}
	tempo := "unknown (120 BPM assumed)"
	if s.HasTempo {
		tempo = fmt.Sprintf("%.4g BPM", s.BPM)
	}

	fmt.Fprintf(w, "%s\n", s.Path)
	fmt.Fprintf(w, "  Meter:    %s (%d beats per bar)\n", s.Meter, t.BeatCount())
	fmt.Fprintf(w, "  Key:      %s\n", key)
	fmt.Fprintf(w, "  Tempo:    %s\n", tempo)
	fmt.Fprintf(w, "  Ambitus:  %s-%s\n", event.NoteName(s.Low), event.NoteName(s.High))
	fmt.Fprintf(w, "  Pickup:   %.3gs\n", s.Offset)
	fmt.Fprintf(w, "  Events:   %s (%s sync markers, %d repeats)\n",
		humanize.Comma(int64(s.Events)), humanize.Comma(int64(s.Markers)), t.Repeats())
	if s.Length > 0 {
		fmt.Fprintf(w, "  Length:   %s\n", durafmt.Parse(s.Length.Round(time.Millisecond)).LimitFirstN(2))
	}
	if s.Size > 0 {
		fmt.Fprintf(w, "  Size:     %s\n", humanize.Bytes(uint64(s.Size)))
	}
}

// play 曲を順番に実時間で演奏する
// タイムアウトまたは割り込みで演奏を止めた場合は正常終了とする
func (app *Application) play(tunes []*timeline.Tune) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if app.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, app.config.Timeout)
		defer cancel()
	}

	sink, closeSink, err := app.openSink()
	if err != nil {
		return err
	}
	defer closeSink()

	driver := &playback.Driver{
		Sink:   sink,
		Logger: app.log,
		Sleep:  app.sleep,
		OnMarker: func(id int, elapsed float64) {
			app.log.Debug("Sync marker", "id", id, "elapsed", elapsed)
		},
	}

	for _, t := range tunes {
		err := driver.Play(ctx, t.NewClock())
		switch {
		case errors.Is(err, context.DeadlineExceeded):
			app.log.Info("Timeout reached, terminating", "duration", app.config.Timeout)
			return nil
		case errors.Is(err, context.Canceled):
			app.log.Info("Interrupted, terminating")
			return nil
		case err != nil:
			return fmt.Errorf("%s: %w", t.Path(), err)
		}
	}
	return nil
}

// openSink 演奏先を用意する
// SoundFontが見つかればシンセサイザ（ヘッドレスでなければオーディオデバイスにも出力）、
// 常にイベントをデバッグログに出力する
func (app *Application) openSink() (playback.Sink, func(), error) {
	logSink := playback.LogSink{Logger: app.log}

	sfPath := findSoundFont(app.config.SoundFont, app.config.Files)
	if sfPath == "" {
		app.log.Info("No SoundFont found, events are only logged")
		return logSink, func() {}, nil
	}

	sf, err := playback.LoadSoundFont(nil, sfPath)
	if err != nil {
		return nil, nil, err
	}
	synth, err := playback.NewSynth(sf)
	if err != nil {
		return nil, nil, err
	}
	app.log.Info("SoundFont loaded", "path", sfPath)

	if app.config.Headless {
		app.log.Info("Headless mode: audio output disabled")
		return playback.Tee(synth, logSink), synth.Stop, nil
	}

	speaker, err := playback.NewSpeaker(synth)
	if err != nil {
		return nil, nil, err
	}
	closeSpeaker := func() {
		if err := speaker.Close(); err != nil {
			app.log.Warn("Failed to close audio output", "error", err)
		}
	}
	return playback.Tee(synth, logSink), closeSpeaker, nil
}
