// Package main is the entry point for the s3gate admin CLI: credential
// inspection, a manual multipart-sweep trigger, an audit-log query, and a
// secret-verification-token helper (SPEC_FULL §11).
package main

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/pbkdf2"

	auditsqlite "github.com/prn-tf/s3gate/internal/audit/sqlite"
	"github.com/prn-tf/s3gate/internal/config"
	"github.com/prn-tf/s3gate/internal/lock"
	"github.com/prn-tf/s3gate/internal/storage"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "version":
		printVersion()
	case "credentials":
		handleCredentialsCommand(os.Args[2:])
	case "sweep":
		handleSweepCommand(os.Args[2:])
	case "audit":
		handleAuditCommand(os.Args[2:])
	case "verify-secret":
		handleVerifySecretCommand(os.Args[2:])
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printVersion() {
	fmt.Printf("s3gate-admin\nVersion: %s\nBuild Time: %s\nGit Commit: %s\n", Version, BuildTime, GitCommit)
}

func printUsage() {
	fmt.Println(`s3gate-admin

Usage:
  s3gate-admin <command> [arguments]

Commands:
  credentials    List the access key IDs known to the loaded configuration
  sweep          Run the expired-multipart-upload sweeper once and exit
  audit          Query the audit log (requires a sqlite audit backend)
  verify-secret  Derive a verification token from a secret, for out-of-band
                 comparison against a configured credential
  version        Print version information
  help           Show this help message`)
}

func loadConfig(configPath string) *config.Config {
	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	return cfg
}

func handleCredentialsCommand(args []string) {
	fs := flag.NewFlagSet("credentials", flag.ExitOnError)
	configPath := fs.String("config", "", "path to config file")
	fs.Parse(args)

	cfg := loadConfig(*configPath)
	for _, cred := range cfg.Auth.Credentials {
		fmt.Printf("%s  (%d permission rules)\n", cred.AccessKeyID, len(cred.Permissions))
	}
}

func handleSweepCommand(args []string) {
	fs := flag.NewFlagSet("sweep", flag.ExitOnError)
	configPath := fs.String("config", "", "path to config file")
	fs.Parse(args)

	cfg := loadConfig(*configPath)
	// The admin CLI runs one sweep synchronously in a single goroutine, so
	// there is no concurrent caller to lock against; NoOpLocker documents
	// that rather than reaching for a memory locker that would never see
	// contention.
	locker := lock.NewNoOpLocker()
	backend, err := storage.NewFSBackend(storage.Config{Root: cfg.Storage.Root}, locker, zerolog.Nop())
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to open storage root: %v\n", err)
		os.Exit(1)
	}

	sweeper := storage.NewSweeper(backend, locker, nil, cfg.Storage.MultipartExpiry, cfg.Sweeper.Interval)
	aborted, err := sweeper.RunOnce(context.Background())
	if err != nil {
		fmt.Fprintf(os.Stderr, "sweep failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("aborted %d expired multipart upload(s)\n", aborted)
}

func handleAuditCommand(args []string) {
	fs := flag.NewFlagSet("audit", flag.ExitOnError)
	configPath := fs.String("config", "", "path to config file")
	limit := fs.Int("limit", 20, "maximum number of entries to print")
	fs.Parse(args)

	cfg := loadConfig(*configPath)
	if cfg.Audit.Backend != "sqlite" {
		fmt.Fprintln(os.Stderr, "audit query is only supported against the sqlite backend")
		os.Exit(1)
	}

	rec, err := auditsqlite.New(context.Background(), auditsqlite.DefaultConfig(cfg.Audit.SQLitePath), zerolog.Nop())
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to open audit database: %v\n", err)
		os.Exit(1)
	}
	defer rec.Close()

	entries, err := rec.Recent(context.Background(), *limit)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to query audit log: %v\n", err)
		os.Exit(1)
	}
	for _, e := range entries {
		fmt.Printf("%s  %-10s  %-8s  %s/%s  %d  %d bytes\n",
			e.Timestamp.Format(time.RFC3339), e.AccessKeyID, e.Operation, e.Bucket, e.Key, e.ResultCode, e.Bytes)
	}
}

// handleVerifySecretCommand derives a deterministic, non-reversible token
// from a secret access key via PBKDF2, so an operator can compare it
// out-of-band against a configured credential without ever transmitting
// or logging the secret itself (SPEC_FULL §11).
func handleVerifySecretCommand(args []string) {
	fs := flag.NewFlagSet("verify-secret", flag.ExitOnError)
	accessKeyID := fs.String("access-key-id", "", "access key ID the secret belongs to, used as the PBKDF2 salt")
	secret := fs.String("secret", "", "the secret access key to derive a token from")
	fs.Parse(args)

	if *accessKeyID == "" || *secret == "" {
		fmt.Fprintln(os.Stderr, "both -access-key-id and -secret are required")
		os.Exit(1)
	}

	token := pbkdf2.Key([]byte(*secret), []byte(*accessKeyID), 100_000, 32, sha256.New)
	fmt.Println(hex.EncodeToString(token))
}
