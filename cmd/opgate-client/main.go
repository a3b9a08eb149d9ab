// opgate-client sends one operation request to an opgate server and prints
// the response: one TLS connection, one request, one response, close.
package main

import (
	"crypto/tls"
	"crypto/x509"
	"flag"
	"fmt"
	"net"
	"os"
	"strings"
	"time"

	"github.com/okriva/opgate/internal/wire"
)

func main() {
	addr := flag.String("addr", "127.0.0.1:7100", "server address")
	caFile := flag.String("ca", "", "PEM bundle used to verify the server certificate")
	insecure := flag.Bool("insecure", false, "skip server certificate verification")
	timeout := flag.Duration("timeout", 10*time.Second, "dial and exchange timeout")
	flag.Parse()

	request := strings.Join(flag.Args(), " ")
	if strings.TrimSpace(request) == "" {
		fmt.Fprintln(os.Stderr, "usage: opgate-client [flags] '<operation>|<payload>'")
		os.Exit(2)
	}

	success, content, err := exchange(*addr, *caFile, *insecure, *timeout, request)
	if err != nil {
		fmt.Fprintf(os.Stderr, "opgate-client: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("success=%t content=%v\n", success, content)
	if !success {
		os.Exit(1)
	}
}

func exchange(addr, caFile string, insecure bool, timeout time.Duration, request string) (bool, any, error) {
	tlsCfg := &tls.Config{
		MinVersion:         tls.VersionTLS12,
		InsecureSkipVerify: insecure,
	}
	if strings.TrimSpace(caFile) != "" {
		caPEM, err := os.ReadFile(caFile)
		if err != nil {
			return false, nil, err
		}
		pool := x509.NewCertPool()
		if ok := pool.AppendCertsFromPEM(caPEM); !ok {
			return false, nil, fmt.Errorf("parse ca bundle: %s", caFile)
		}
		tlsCfg.RootCAs = pool
	}

	conn, err := tls.DialWithDialer(&net.Dialer{Timeout: timeout}, "tcp", addr, tlsCfg)
	if err != nil {
		return false, nil, err
	}
	defer conn.Close()
	_ = conn.SetDeadline(time.Now().Add(timeout))

	encoded, err := wire.EncodeRequest(request)
	if err != nil {
		return false, nil, err
	}
	if _, err := conn.Write(encoded); err != nil {
		return false, nil, err
	}

	return wire.ReadResult(conn)
}
