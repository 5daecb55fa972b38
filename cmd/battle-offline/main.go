package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"regexp"
	"runtime"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/kip93/3T-VI/pkg/ai/mcts"
	"github.com/kip93/3T-VI/pkg/ai/random"
	"github.com/kip93/3T-VI/pkg/ai/trivial"
	"github.com/kip93/3T-VI/pkg/ai/vi"
	"github.com/kip93/3T-VI/pkg/game"
	"github.com/kip93/3T-VI/pkg/store"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// 指定されたディレクトリ内の同じプレフィックスを持つファイルの最大連番を取得する
func findMaxSequenceNumber(dir, prefix string) (int, error) {
	// ディレクトリが存在しない場合は0を返す
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return 0, nil
	}

	files, err := os.ReadDir(dir)
	if err != nil {
		return 0, err
	}

	// プレフィックス_NNNNN.json の形式にマッチする正規表現
	pattern := regexp.MustCompile(fmt.Sprintf(`^%s_(\d{5,})\.json$`, regexp.QuoteMeta(prefix)))
	maxSeq := 0

	for _, file := range files {
		if file.IsDir() {
			continue
		}

		matches := pattern.FindStringSubmatch(file.Name())
		if len(matches) == 2 {
			seq, err := strconv.Atoi(matches[1])
			if err != nil {
				continue
			}
			maxSeq = max(maxSeq, seq)
		}
	}

	return maxSeq, nil
}

// frozen は学習済みエージェントを探索なし・学習なしで打たせる。
// game.Learner を満たさないので Runner は学習も保存もしない。
type frozen struct {
	agent *vi.Agent
}

func (f frozen) Name() string {
	return f.agent.Name()
}

func (f frozen) Move(board game.Board) game.Action {
	action := f.agent.Move(board)
	f.agent.Forget()
	return action
}

func newOpponent(name string, simulations int) (game.Player, error) {
	switch name {
	case "mcts":
		return mcts.New(simulations, nil), nil
	case "random":
		return random.New(nil), nil
	case "trivial":
		return trivial.New(), nil
	default:
		return nil, fmt.Errorf("unknown opponent %q", name)
	}
}

// 対戦タスクの構造体
type battleTask struct {
	gameIndex int
	seqNum    int
}

// 対戦結果の構造体 (エージェント側から見た結果)
type battleResult struct {
	gameIndex int
	result    game.Result
	err       error
}

type workerConfig struct {
	agentName    string
	opponent     string
	simulations  int
	progress     store.Store
	outputDir    string
	outputPrefix string
	noOutput     bool
}

// ワーカー関数。エージェントはワーカーごとに 1 回だけ読み込む。
func worker(ctx context.Context, id int, config workerConfig, tasks <-chan battleTask, results chan<- battleResult, wg *sync.WaitGroup) {
	defer wg.Done()

	agent, err := vi.New(ctx, config.agentName, vi.WithStore(config.progress))
	if err == nil {
		agent.SetEpsilon(0)
	}
	opponent, oppErr := newOpponent(config.opponent, config.simulations)
	if err == nil {
		err = oppErr
	}

	for task := range tasks {
		if err != nil {
			results <- battleResult{gameIndex: task.gameIndex, err: err}
			continue
		}

		// エージェントは常に MarkA、先手はランダム
		runner := game.NewRunner(frozen{agent}, opponent)
		record, runErr := runner.Run(ctx)
		if runErr != nil {
			results <- battleResult{gameIndex: task.gameIndex, err: runErr}
			continue
		}

		if !config.noOutput {
			// 結果をJSONに変換（インデントなし）
			jsonData, err := json.Marshal(record)
			if err != nil {
				log.Error().Err(err).Int("game", task.gameIndex).Msg("failed to encode match record")
			} else {
				// ファイル名の生成（5桁のゼロ詰め連番）
				filename := filepath.Join(config.outputDir, fmt.Sprintf("%s_%05d.json", config.outputPrefix, task.seqNum))
				if err := os.WriteFile(filename, jsonData, 0644); err != nil {
					log.Error().Err(err).Str("file", filename).Msg("failed to write match record")
				}
			}
		}

		results <- battleResult{
			gameIndex: task.gameIndex,
			result:    record.Outcome.For(game.MarkA),
		}

		log.Debug().Int("game", task.gameIndex).Int("worker", id).Stringer("outcome", record.Outcome).Msg("match completed")
	}
}

func main() {
	// .env は任意
	_ = godotenv.Load()

	// コマンドライン引数の解析
	agentName := flag.String("agent", vi.NameO, "対戦させるエージェントの名前")
	opponent := flag.String("opponent", "random", "対戦相手: random, trivial, mcts")
	simulations := flag.Int("mcts-sims", mcts.DefaultSimulations, "mcts の 1 手あたりのシミュレーション回数")
	backend := flag.String("store", os.Getenv("VI_STORE"), "進捗の保存先: file, sqlite, redis")
	target := flag.String("target", os.Getenv("VI_STORE_TARGET"), "保存先のディレクトリ・DB パス・アドレス")
	outputDir := flag.String("output", "output", "出力ディレクトリ名")
	outputPrefix := flag.String("output-prefix", "", "出力ファイル名のプレフィックス")
	noOutput := flag.Bool("no-output", false, "出力しない")
	games := flag.Int("games", 1, "実行する試合数")
	numWorkers := flag.Int("workers", runtime.NumCPU(), "ワーカー数")
	logLevel := flag.String("log-level", zerolog.LevelInfoValue, "ログレベル")
	flag.Parse()

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.TimeOnly})
	level, err := zerolog.ParseLevel(*logLevel)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid log level")
	}
	zerolog.SetGlobalLevel(level)

	// 出力プレフィックスが指定されていない場合はエラー
	if !*noOutput && *outputPrefix == "" {
		fmt.Println("エラー: --output-prefix は必須です")
		flag.Usage()
		os.Exit(1)
	}
	if *numWorkers < 1 {
		*numWorkers = 1
	}

	if !*noOutput {
		// 出力ディレクトリの作成
		if err := os.MkdirAll(*outputDir, 0755); err != nil {
			log.Fatal().Err(err).Str("dir", *outputDir).Msg("failed to create output directory")
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	progress, err := store.Open(ctx, *backend, *target)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open progress store")
	}
	defer progress.Close()

	// 既存ファイルの最大連番を取得
	startSeq := 1
	if !*noOutput {
		maxSeq, err := findMaxSequenceNumber(*outputDir, *outputPrefix)
		if err != nil {
			log.Warn().Err(err).Msg("could not scan existing records")
		}
		startSeq = maxSeq + 1
		fmt.Printf("連番 %05d から開始します\n", startSeq)
	}

	fmt.Printf("%s 対 %s を %d 回実行します（ワーカー数: %d）\n", *agentName, *opponent, *games, *numWorkers)

	// チャネルの作成
	tasks := make(chan battleTask, *games)
	results := make(chan battleResult, *games)

	config := workerConfig{
		agentName:    *agentName,
		opponent:     *opponent,
		simulations:  *simulations,
		progress:     progress,
		outputDir:    *outputDir,
		outputPrefix: *outputPrefix,
		noOutput:     *noOutput,
	}

	// ワーカープールの作成
	var wg sync.WaitGroup
	for i := 0; i < *numWorkers; i++ {
		wg.Add(1)
		go worker(ctx, i, config, tasks, results, &wg)
	}

	// タスクの送信
	go func() {
		for i := 0; i < *games; i++ {
			tasks <- battleTask{
				gameIndex: i,
				seqNum:    startSeq + i,
			}
		}
		close(tasks)
	}()

	// 結果の収集
	var wins, losses, ties, failed int
	for i := 0; i < *games; i++ {
		result := <-results
		switch {
		case result.err != nil:
			failed++
			log.Debug().Err(result.err).Int("game", result.gameIndex).Msg("match aborted")
		case result.result == game.Win:
			wins++
		case result.result == game.Loss:
			losses++
		default:
			ties++
		}
	}

	// すべてのワーカーの終了を待つ
	wg.Wait()

	fmt.Println("すべての対戦が完了しました")
	fmt.Printf("勝ち: %d, 負け: %d, 引き分け: %d\n", wins, losses, ties)
	if failed > 0 {
		fmt.Printf("中断: %d\n", failed)
	}
}
