// Package vapid generates the server key pair used to sign web push requests.
package vapid

import (
	"bufio"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/atotto/clipboard"
	"github.com/joho/godotenv"
)

var ErrSubjectRequired = errors.New("subject is required")

type Keys struct {
	Subject    string `json:"subject"`
	PublicKey  string `json:"publicKey"`
	PrivateKey string `json:"privateKey"`
}

// NormalizeSubject adds the mailto: scheme to bare email addresses. https
// subjects are kept as they are.
func NormalizeSubject(s string) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", ErrSubjectRequired
	}
	lower := strings.ToLower(s)
	if strings.HasPrefix(lower, "mailto:") || strings.HasPrefix(lower, "https://") {
		return s, nil
	}
	return "mailto:" + s, nil
}

func Generate(subject string) (Keys, error) {
	subject, err := NormalizeSubject(subject)
	if err != nil {
		return Keys{}, err
	}

	privateKey, publicKey, err := webpush.GenerateVAPIDKeys()
	if err != nil {
		return Keys{}, fmt.Errorf("failed to generate vapid keys: %w", err)
	}
	return Keys{Subject: subject, PublicKey: publicKey, PrivateKey: privateKey}, nil
}

func (k Keys) env() map[string]string {
	return map[string]string{
		"VAPID_SUBJECT":     k.Subject,
		"VAPID_PUBLIC_KEY":  k.PublicKey,
		"VAPID_PRIVATE_KEY": k.PrivateKey,
	}
}

// EnvSnippet renders the keys as .env lines.
func (k Keys) EnvSnippet() string {
	s, _ := godotenv.Marshal(k.env())
	return s + "\n"
}

func (k Keys) JSON() ([]byte, error) {
	return json.MarshalIndent(map[string]Keys{"vapidKeys": k}, "", "  ")
}

// SaveEnv merges the keys into the .env file at path, creating it if needed.
// Other variables in the file are preserved.
func SaveEnv(path string, k Keys) error {
	existing, err := godotenv.Read(path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("failed to read %s: %w", path, err)
		}
		existing = map[string]string{}
	}
	for key, v := range k.env() {
		existing[key] = v
	}
	if err := godotenv.Write(existing, path); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

// Run implements the --generate-vapid-keys command. When -subject is not given
// the subject is read from in.
func Run(args []string, in io.Reader, out io.Writer) error {
	fs := flag.NewFlagSet("generate-vapid-keys", flag.ContinueOnError)
	fs.SetOutput(out)
	subject := fs.String("subject", "", "contact for push services, e.g. mailto:admin@example.com")
	copyToClipboard := fs.Bool("copy", false, "copy the .env snippet to the clipboard")
	envFile := fs.String("write", "", "merge the keys into this .env file")
	if err := fs.Parse(args); err != nil {
		return err
	}

	fmt.Fprintln(out, "=== VAPID Key Generation ===")
	if *subject == "" {
		fmt.Fprint(out, "Enter your email address (e.g., mailto:admin@example.com): ")
		line, err := bufio.NewReader(in).ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return fmt.Errorf("failed to read subject: %w", err)
		}
		*subject = line
		fmt.Fprintln(out)
	}

	keys, err := Generate(*subject)
	if err != nil {
		return err
	}

	js, err := keys.JSON()
	if err != nil {
		return err
	}
	snippet := keys.EnvSnippet()

	fmt.Fprintln(out, "Generated VAPID Keys:")
	fmt.Fprintln(out, string(js))
	fmt.Fprintln(out)
	fmt.Fprintln(out, "Add these to your .env file:")
	fmt.Fprint(out, snippet)

	if *envFile != "" {
		if err := SaveEnv(*envFile, keys); err != nil {
			fmt.Fprintf(out, "Warning: %v\n", err)
		} else {
			fmt.Fprintf(out, "VAPID keys saved to %s\n", *envFile)
		}
	}

	if *copyToClipboard {
		if clipboard.Unsupported {
			fmt.Fprintln(out, "Warning: clipboard is not available on this system")
		} else if err := clipboard.WriteAll(snippet); err != nil {
			fmt.Fprintf(out, "Warning: failed to copy to clipboard: %v\n", err)
		} else {
			fmt.Fprintln(out, "Copied to clipboard.")
		}
	}
	return nil
}
