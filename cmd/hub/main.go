// Command hub runs the audiohub SFMU server: HTTP control surface,
// WebRTC signalling, and the mixing pipeline behind it. TLS setup
// ported from original_source/intercomserver.py's create_ssl_context
// (self-signed, dev-only) and main().
package main

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"log"
	"math/big"
	"net"
	"net/http"
	"time"

	"github.com/n0remac/audiohub/internal/authsession"
	"github.com/n0remac/audiohub/internal/config"
	"github.com/n0remac/audiohub/internal/eventlog"
	"github.com/n0remac/audiohub/internal/httpapi"
	"github.com/n0remac/audiohub/internal/observability"
	"github.com/n0remac/audiohub/internal/registry"
	"github.com/n0remac/audiohub/internal/signalling"
	"github.com/n0remac/audiohub/internal/turncreds"
	"github.com/n0remac/audiohub/internal/wsmonitor"
)

func main() {
	cfg := config.FromEnv()

	events, err := eventlog.Open("audiohub.db", cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("[ERROR] eventlog open: %v", err)
	}

	reg := registry.New(events)
	sig, err := signalling.New(reg)
	if err != nil {
		log.Fatalf("[ERROR] signalling: %v", err)
	}
	sess := authsession.New()
	monitor := wsmonitor.New()
	turn := turncreds.New(cfg.TURNSecret, cfg.TURNTTL)

	go pushMonitorSnapshots(reg, monitor)
	go logAudioStatsPeriodically(reg)

	mux := http.NewServeMux()
	srv := httpapi.New(reg, sig, sess, events, monitor, turn)
	srv.Mount(mux)

	cert, err := selfSignedCert()
	if err != nil {
		log.Fatalf("[ERROR] self-signed cert: %v", err)
	}

	addr := cfg.Addr

	log.Printf("[INFO] === audiohub SFMU ===")
	log.Printf("[INFO] listening on https://localhost%s", addr)
	log.Printf("[INFO] accept the self-signed certificate in your browser")

	server := &http.Server{
		Addr:    addr,
		Handler: mux,
		TLSConfig: &tls.Config{
			Certificates: []tls.Certificate{cert},
		},
	}
	if err := server.ListenAndServeTLS("", ""); err != nil {
		log.Fatalf("[ERROR] serve: %v", err)
	}
}

// pushMonitorSnapshots drives the additive /ws/monitor push: every tick
// it collects the current registry snapshot and publishes it to any
// connected monitor clients.
func pushMonitorSnapshots(reg *registry.Registry, monitor *wsmonitor.Hub) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for range ticker.C {
		monitor.Publish(observability.Collect(reg))
	}
}

// logAudioStatsPeriodically is the Go analogue of
// original_source/intercomserver.py's print_audio_stats background
// thread.
func logAudioStatsPeriodically(reg *registry.Registry) {
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()
	for range ticker.C {
		snap := observability.Collect(reg)
		if len(snap.Sessions) == 0 {
			log.Printf("[INFO] audio stats: no active connections")
			continue
		}
		for _, s := range snap.Sessions {
			log.Printf("[INFO] audio stats: %s frames_sent=%d sources=%v avg_amplitude=%.4f",
				s.ParticipantID, s.FramesSent, s.Sources, s.AvgAmplitude)
		}
	}
}

// selfSignedCert generates an in-memory self-signed TLS certificate
// for localhost, good for one year, matching the dev-only cert the
// original server mints into temp files on every startup.
func selfSignedCert() (tls.Certificate, error) {
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		return tls.Certificate{}, err
	}

	serial, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 128))
	if err != nil {
		return tls.Certificate{}, err
	}

	template := x509.Certificate{
		SerialNumber: serial,
		Subject:      pkix.Name{CommonName: "localhost"},
		NotBefore:    time.Now(),
		NotAfter:     time.Now().Add(365 * 24 * time.Hour),
		KeyUsage:     x509.KeyUsageKeyEncipherment | x509.KeyUsageDigitalSignature,
		ExtKeyUsage:  []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		DNSNames:     []string{"localhost"},
		IPAddresses:  []net.IP{net.ParseIP("127.0.0.1")},
	}

	der, err := x509.CreateCertificate(rand.Reader, &template, &template, &priv.PublicKey, priv)
	if err != nil {
		return tls.Certificate{}, err
	}

	return tls.Certificate{
		Certificate: [][]byte{der},
		PrivateKey:  priv,
	}, nil
}
