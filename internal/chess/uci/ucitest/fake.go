// Package ucitest provides a scripted UCI engine that runs inside a
// re-executed test binary.
//
// A test package adds
//
//	func TestFakeEngineProcess(t *testing.T) { ucitest.Serve() }
//
// and points the engine at os.Args[0] with Args().
package ucitest

import (
	"bufio"
	"fmt"
	"os"
	"strings"
)

const envKey = "COACH_FAKE_ENGINE"

// Args are the arguments that make the test binary run Serve.
func Args() []string {
	return []string{"-test.run=^TestFakeEngineProcess$"}
}

// Env marks the child process as a fake engine; tests set it with t.Setenv.
func Env() (string, string) { return envKey, "1" }

// Serve answers UCI commands on stdin and exits the process on quit or EOF.
// It does nothing when the process was not started as a fake engine.
//
// The reply to go depends on the fen of the last position command:
//
//	"slow"     waits for stop, then answers bestmove
//	"stuck"    never answers
//	"garbage"  reports a score that is not a number
//	"mate"     reports mate in 2
//	"exit"     terminates the process
//	otherwise  reports one line per multipv slot, best move e2e4
func Serve() {
	if os.Getenv(envKey) != "1" {
		return
	}
	out := bufio.NewWriter(os.Stdout)
	say := func(format string, args ...any) {
		fmt.Fprintf(out, format+"\n", args...)
		out.Flush()
	}

	var (
		fen     string
		multiPV = 1
		waiting bool
	)
	in := bufio.NewScanner(os.Stdin)
	for in.Scan() {
		line := strings.TrimSpace(in.Text())
		switch {
		case line == "uci":
			say("id name FakeFish")
			say("option name MultiPV type spin default 1 min 1 max 5")
			say("uciok")
		case line == "isready":
			say("readyok")
		case strings.HasPrefix(line, "setoption name MultiPV value "):
			fmt.Sscanf(strings.TrimPrefix(line, "setoption name MultiPV value "), "%d", &multiPV)
		case strings.HasPrefix(line, "position fen "):
			fen = strings.Fields(strings.TrimPrefix(line, "position fen "))[0]
		case strings.HasPrefix(line, "position startpos"):
			fen = "startpos"
		case strings.HasPrefix(line, "go"):
			switch fen {
			case "slow":
				waiting = true
			case "stuck":
			case "garbage":
				say("info depth 5 multipv 1 score cp abc pv e2e4")
				say("bestmove e2e4")
			case "mate":
				say("info depth 7 seldepth 9 multipv 1 score mate 2 nodes 900 pv d1h5 g7g6 h5f7")
				say("bestmove d1h5 ponder g7g6")
			case "exit":
				os.Exit(3)
			default:
				say("info string NNUE evaluation enabled")
				for pv := 1; pv <= multiPV; pv++ {
					say("info depth 11 seldepth 13 multipv %d score cp %d nodes 1000 pv %s e7e5", pv, 40-pv*10, firstMoves[pv-1])
				}
				for pv := 1; pv <= multiPV; pv++ {
					say("info depth 12 seldepth 15 multipv %d score cp %d nodes 2000 nps 100000 pv %s e7e5 g1f3", pv, 44-pv*10, firstMoves[pv-1])
				}
				say("info depth 13 multipv 1 score cp 90 lowerbound nodes 2100 pv d2d4")
				say("bestmove e2e4 ponder e7e5")
			}
		case line == "stop":
			if waiting {
				waiting = false
				say("info depth 3 multipv 1 score cp 12 nodes 10 pv e2e4")
				say("bestmove e2e4")
			}
		case line == "quit":
			os.Exit(0)
		}
	}
	os.Exit(0)
}

var firstMoves = []string{"e2e4", "d2d4", "g1f3", "c2c4", "b1c3"}
