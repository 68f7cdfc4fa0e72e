package main

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/x509"
	"encoding/hex"
	"encoding/pem"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

const hmacKeyBytes = 32

func newKeygenCmd() *cobra.Command {
	var (
		method string
		outDir string
	)
	cmd := &cobra.Command{
		Use:   "keygen",
		Short: "Generate distinct access and refresh signing keys",
		Long: "hs256 prints two random secrets in dotenv form. ed25519 writes PEM key pairs " +
			"(access.pem, access.pub.pem, refresh.pem, refresh.pub.pem) into --out.",
		RunE: func(cmd *cobra.Command, args []string) error {
			switch strings.ToLower(method) {
			case "hs256":
				return writeHMACKeys(cmd.OutOrStdout(), rand.Reader)
			case "ed25519":
				return writeEd25519Keys(cmd.OutOrStdout(), rand.Reader, outDir)
			default:
				return fmt.Errorf("unsupported method %q (hs256 or ed25519)", method)
			}
		},
	}
	cmd.Flags().StringVar(&method, "method", "hs256", "hs256 or ed25519")
	cmd.Flags().StringVar(&outDir, "out", ".", "directory for ed25519 PEM files")
	return cmd
}

func writeHMACKeys(w io.Writer, random io.Reader) error {
	env := map[string]string{}
	for _, name := range []string{"AUTHCORE_JWT_ACCESS_KEY", "AUTHCORE_JWT_REFRESH_KEY"} {
		b := make([]byte, hmacKeyBytes)
		if _, err := io.ReadFull(random, b); err != nil {
			return fmt.Errorf("read random: %w", err)
		}
		env[name] = hex.EncodeToString(b)
	}
	out, err := godotenv.Marshal(env)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, out)
	return err
}

func writeEd25519Keys(w io.Writer, random io.Reader, dir string) error {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}
	for _, name := range []string{"access", "refresh"} {
		pub, priv, err := ed25519.GenerateKey(random)
		if err != nil {
			return fmt.Errorf("generate %s key: %w", name, err)
		}
		privDER, err := x509.MarshalPKCS8PrivateKey(priv)
		if err != nil {
			return err
		}
		pubDER, err := x509.MarshalPKIXPublicKey(pub)
		if err != nil {
			return err
		}
		privPath := filepath.Join(dir, name+".pem")
		pubPath := filepath.Join(dir, name+".pub.pem")
		if err := writePEM(privPath, "PRIVATE KEY", privDER, 0o600); err != nil {
			return err
		}
		if err := writePEM(pubPath, "PUBLIC KEY", pubDER, 0o644); err != nil {
			return err
		}
		fmt.Fprintf(w, "%s: %s %s\n", name, privPath, pubPath)
	}
	return nil
}

func writePEM(path, blockType string, der []byte, perm os.FileMode) error {
	return os.WriteFile(path, pem.EncodeToMemory(&pem.Block{Type: blockType, Bytes: der}), perm)
}
