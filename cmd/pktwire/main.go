package main

import (
	"context"
	"flag"
	"fmt"
	"net"
	"os"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/davrell/pktwire/internal/config"
	"github.com/davrell/pktwire/internal/logging"
	"github.com/davrell/pktwire/internal/protocol/channel"
	"github.com/davrell/pktwire/internal/protocol/packet"
	"github.com/davrell/pktwire/internal/store"
	"github.com/pterm/pterm"
)

// defaultSendType tags plain send/ping traffic; the echo service mirrors
// whatever tag it receives, so any value outside the record-service range
// works.
const defaultSendType uint32 = 1

// settings is the effective connection target after merging the client
// config file with command-line overrides.
type settings struct {
	Host    string
	Service string
	Unix    string
	Timeout time.Duration
}

type flagOverrides struct {
	host    string
	service string
	unix    string
	timeout time.Duration
	set     map[string]bool
}

func main() {
	configPath := flag.String("config", "", "client config file (TOML)")
	host := flag.String("host", "", "daemon host; empty resolves loopback")
	service := flag.String("service", "", "daemon service name or port")
	unixPath := flag.String("unix", "", "daemon unix socket path (overrides host/service)")
	timeout := flag.Duration("timeout", 0, "receive timeout; 0 blocks forever")
	dataType := flag.Uint("type", uint(defaultSendType), "packet data type for send")
	fromFile := flag.String("file", "", "read payload or record bytes from a file")
	outPath := flag.String("out", "", "write fetched record bytes to a file (get)")
	flag.Usage = usage
	flag.Parse()

	logging.ConfigureRuntime()

	args := flag.Args()
	if len(args) == 0 {
		usage()
		os.Exit(2)
	}

	over := flagOverrides{
		host:    *host,
		service: *service,
		unix:    *unixPath,
		timeout: *timeout,
		set:     map[string]bool{},
	}
	flag.Visit(func(f *flag.Flag) { over.set[f.Name] = true })

	base, err := loadSettings(*configPath)
	if err != nil {
		pterm.Error.Println(err.Error())
		os.Exit(1)
	}
	cfg := mergeSettings(base, over)

	if err := runCommand(args[0], args[1:], cfg, uint32(*dataType), *fromFile, *outPath); err != nil {
		pterm.Error.Println(err.Error())
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprint(flag.CommandLine.Output(), `usage: pktwire [flags] <command> [args]

Commands:
  ping                round-trip one empty packet and report the latency
  send [payload...]   send one packet and print the reply (-type, -file)
  put <name> [value]  store a record under name (-file reads record bytes)
  get <name>          fetch a record by name (-out writes record bytes)

Flags:
`)
	flag.PrintDefaults()
}

// loadSettings builds the connection target from coded defaults, replaced
// wholesale by the config file when one is given.
func loadSettings(path string) (settings, error) {
	cfg := config.DefaultClientConfig()
	if strings.TrimSpace(path) != "" {
		loaded, err := config.LoadClientConfig(path)
		if err != nil {
			return settings{}, err
		}
		cfg = loaded
	}
	return settings{
		Host:    cfg.Host,
		Service: cfg.Service,
		Unix:    cfg.UnixSocket,
		Timeout: cfg.TimeoutDuration(),
	}, nil
}

// mergeSettings applies only the flags the user actually set, so an empty
// -host can still override a configured host.
func mergeSettings(base settings, over flagOverrides) settings {
	out := base
	if over.set["host"] {
		out.Host = over.host
	}
	if over.set["service"] {
		out.Service = over.service
	}
	if over.set["unix"] {
		out.Unix = over.unix
	}
	if over.set["timeout"] {
		out.Timeout = over.timeout
	}
	return out
}

func runCommand(cmd string, args []string, cfg settings, dataType uint32, fromFile, outPath string) error {
	ctx := context.Background()
	switch cmd {
	case "ping":
		return runPing(ctx, cfg)
	case "send":
		data, err := payloadBytes(args, fromFile)
		if err != nil {
			return err
		}
		return runSend(ctx, cfg, dataType, data)
	case "put":
		if len(args) < 1 {
			return fmt.Errorf("put requires a record name")
		}
		record, err := payloadBytes(args[1:], fromFile)
		if err != nil {
			return err
		}
		return runPut(ctx, cfg, args[0], record)
	case "get":
		if len(args) != 1 {
			return fmt.Errorf("get requires exactly one record name")
		}
		return runGet(ctx, cfg, args[0], outPath)
	default:
		return fmt.Errorf("unknown command %q", cmd)
	}
}

// payloadBytes resolves a payload: -file wins, then the positional args
// joined with spaces, then empty.
func payloadBytes(args []string, fromFile string) ([]byte, error) {
	if strings.TrimSpace(fromFile) != "" {
		data, err := os.ReadFile(fromFile)
		if err != nil {
			return nil, fmt.Errorf("read payload file: %w", err)
		}
		return data, nil
	}
	if len(args) == 0 {
		return nil, nil
	}
	return []byte(strings.Join(args, " ")), nil
}

func dialChannel(ctx context.Context, cfg settings) (*channel.Channel, error) {
	if path := strings.TrimSpace(cfg.Unix); path != "" {
		conn, err := net.Dial("unix", path)
		if err != nil {
			return nil, err
		}
		return channel.FromConn(conn, channel.DefaultOptions()), nil
	}
	return channel.Dial(ctx, cfg.Host, cfg.Service, channel.DefaultOptions())
}

func awaitReply(ch *channel.Channel, timeout time.Duration) (packet.Packet, error) {
	if timeout > 0 {
		return ch.ReceiveTimeout(timeout)
	}
	return ch.Receive()
}

func runPing(ctx context.Context, cfg settings) error {
	ch, err := dialChannel(ctx, cfg)
	if err != nil {
		return err
	}
	defer ch.Close()

	start := time.Now()
	if err := ch.Send(defaultSendType, nil); err != nil {
		return err
	}
	pkt, err := awaitReply(ch, cfg.Timeout)
	if err != nil {
		return err
	}
	rtt := time.Since(start).Round(time.Microsecond)
	pterm.Success.Printfln("reply from %s in %s (%s)", ch.RemoteAddr(), rtt, describeReply(pkt))
	return nil
}

func runSend(ctx context.Context, cfg settings, dataType uint32, data []byte) error {
	ch, err := dialChannel(ctx, cfg)
	if err != nil {
		return err
	}
	defer ch.Close()

	if err := ch.Send(dataType, data); err != nil {
		return err
	}
	pterm.Info.Printfln("sent type=%d (%d bytes) to %s", dataType, len(data), ch.RemoteAddr())

	pkt, err := awaitReply(ch, cfg.Timeout)
	if err != nil {
		return err
	}
	pterm.Success.Printfln("received %s", describeReply(pkt))
	printPayload(pkt.Data)
	return nil
}

func runPut(ctx context.Context, cfg settings, name string, record []byte) error {
	payload, err := store.EncodePutRequest(name, record)
	if err != nil {
		return err
	}

	ch, err := dialChannel(ctx, cfg)
	if err != nil {
		return err
	}
	defer ch.Close()

	if err := ch.Send(store.TypePut, payload); err != nil {
		return err
	}
	pkt, err := awaitReply(ch, cfg.Timeout)
	if err != nil {
		return err
	}

	switch pkt.Header.DataType {
	case store.TypeSuccess:
		pterm.Success.Printfln("stored %q (%d bytes)", name, len(record))
		return nil
	default:
		return fmt.Errorf("put %q refused: %s", name, describeReply(pkt))
	}
}

func runGet(ctx context.Context, cfg settings, name, outPath string) error {
	ch, err := dialChannel(ctx, cfg)
	if err != nil {
		return err
	}
	defer ch.Close()

	if err := ch.Send(store.TypeGet, []byte(name)); err != nil {
		return err
	}
	pkt, err := awaitReply(ch, cfg.Timeout)
	if err != nil {
		return err
	}

	switch pkt.Header.DataType {
	case store.TypeSuccess:
	case store.TypeNotFound:
		pterm.Warning.Printfln("no record named %q", name)
		return nil
	default:
		return fmt.Errorf("get %q refused: %s", name, describeReply(pkt))
	}

	if strings.TrimSpace(outPath) != "" {
		if err := os.WriteFile(outPath, pkt.Data, 0o600); err != nil {
			return fmt.Errorf("write record file: %w", err)
		}
		pterm.Success.Printfln("wrote %q (%d bytes) to %s", name, len(pkt.Data), outPath)
		return nil
	}
	pterm.Success.Printfln("record %q (%d bytes)", name, len(pkt.Data))
	printPayload(pkt.Data)
	return nil
}

// describeReply renders a reply summary, naming record-service tags and
// falling back to the numeric type.
func describeReply(pkt packet.Packet) string {
	name := ""
	switch pkt.Header.DataType {
	case store.TypeSuccess:
		name = "success"
	case store.TypeFailure:
		name = "failure"
	case store.TypeInvalid:
		name = "invalid"
	case store.TypeNotFound:
		name = "not_found"
	}
	if name == "" {
		return fmt.Sprintf("type=%d, %d bytes", pkt.Header.DataType, len(pkt.Data))
	}
	return fmt.Sprintf("%s (type=%d), %d bytes", name, pkt.Header.DataType, len(pkt.Data))
}

func printPayload(data []byte) {
	if len(data) == 0 {
		return
	}
	if printable(data) {
		pterm.Println(string(data))
		return
	}
	pterm.Println(fmt.Sprintf("(binary payload, % x ...)", head(data, 16)))
}

// printable reports whether data is valid UTF-8 without control bytes
// other than tab and newline, so raw records do not mangle the terminal.
func printable(data []byte) bool {
	if !utf8.Valid(data) {
		return false
	}
	for _, r := range string(data) {
		if r == '\n' || r == '\t' {
			continue
		}
		if r < 0x20 || r == 0x7f {
			return false
		}
	}
	return true
}

func head(data []byte, n int) []byte {
	if len(data) <= n {
		return data
	}
	return data[:n]
}
