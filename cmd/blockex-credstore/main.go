// blockex-credstore imports BlockEx credentials into an encrypted Badger
// store and inspects what is stored. Tools read the store via
// BLOCKEX_CREDSTORE so plaintext passwords never have to live in config
// files on trading hosts.
package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"

	"github.com/blockex/tradeapi-go/pkg/secretstore"
)

func main() {
	var (
		dbPath    = flag.String("store", getenv("BLOCKEX_CREDSTORE", "data/credentials.badger"), "credential store path")
		secretKey = flag.String("secret-key", getenv("BLOCKEX_CREDSTORE_KEY", ""), "store encryption key (32 bytes, hex or base64)")
		envFile   = flag.String("env", "", "import credentials from this .env file instead of the process environment")
		show      = flag.Bool("show", false, "print the stored credentials (password masked) and exit")
	)
	flag.Parse()

	keyBytes, err := secretstore.ParseKey(*secretKey)
	if err != nil {
		fatal(err)
	}
	if keyBytes == nil {
		fatal(fmt.Errorf("encryption key is required: set BLOCKEX_CREDSTORE_KEY or pass -secret-key"))
	}

	store, err := secretstore.Open(secretstore.OpenOptions{
		Path:          *dbPath,
		EncryptionKey: keyBytes,
		ReadOnly:      *show,
	})
	if err != nil {
		fatal(err)
	}
	defer store.Close()

	if *show {
		creds, err := store.LoadCredentials()
		if err != nil {
			fatal(err)
		}
		fmt.Printf("api_url:  %s\n", creds.APIURL)
		fmt.Printf("api_id:   %s\n", creds.APIID)
		fmt.Printf("username: %s\n", creds.Username)
		fmt.Printf("password: %s\n", mask(creds.Password))
		return
	}

	creds, err := collect(*envFile)
	if err != nil {
		fatal(err)
	}
	if creds.Username == "" || creds.Password == "" {
		fatal(fmt.Errorf("BLOCKEX_USERNAME and BLOCKEX_PASSWORD must be set"))
	}
	if err := store.SaveCredentials(creds); err != nil {
		fatal(err)
	}
	fmt.Fprintf(os.Stderr, "credentials for %q stored in %s\n", creds.Username, *dbPath)
}

func collect(envFile string) (secretstore.Credentials, error) {
	lookup := os.Getenv
	if envFile != "" {
		kv, err := godotenv.Read(envFile)
		if err != nil {
			return secretstore.Credentials{}, err
		}
		lookup = func(key string) string { return kv[key] }
	}
	return secretstore.Credentials{
		APIURL:   lookup("BLOCKEX_API_URL"),
		APIID:    lookup("BLOCKEX_API_ID"),
		Username: lookup("BLOCKEX_USERNAME"),
		Password: lookup("BLOCKEX_PASSWORD"),
	}, nil
}

func mask(s string) string {
	if s == "" {
		return "(unset)"
	}
	return strings.Repeat("*", len(s))
}

func getenv(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func fatal(err error) {
	fmt.Fprintln(os.Stderr, "error:", err.Error())
	os.Exit(1)
}
