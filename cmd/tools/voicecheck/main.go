// voicecheck exercises the speech gateway from the command line: transcribe
// a local wav file or synthesize a phrase, without starting the full server.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/alyahmadi/sakina/backend/internal/audio"
	"github.com/alyahmadi/sakina/backend/internal/config"
	"github.com/alyahmadi/sakina/backend/internal/gateway"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)

	if err := godotenv.Load(); err != nil {
		log.Printf("warning: failed to load .env, using system environment: %v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}
	if !cfg.Gemini.Enabled() {
		log.Fatal("GEMINI_API_KEY is required")
	}

	mode := flag.String("mode", "", "check mode: asr or tts")
	audioPath := flag.String("audio", "", "asr input wav file path")
	text := flag.String("text", "", "tts input text")
	outputPath := flag.String("out", "", "tts output wav path (default tts-output-<unix>.wav)")
	voice := flag.String("voice", "", "tts voice name, defaults to the configured voice")
	timeout := flag.Duration("timeout", 45*time.Second, "request timeout")

	flag.Parse()

	if *mode != "asr" && *mode != "tts" {
		flag.Usage()
		log.Fatal("specify -mode=asr or -mode=tts")
	}

	logger, err := zap.NewDevelopment()
	if err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	gemini, err := gateway.NewGemini(ctx, cfg.Gemini, logger)
	if err != nil {
		log.Fatalf("failed to initialize gemini gateway: %v", err)
	}

	switch *mode {
	case "asr":
		runASR(ctx, gemini, *audioPath)
	case "tts":
		runTTS(ctx, gemini, cfg, *text, *voice, *outputPath)
	}
}

func runASR(ctx context.Context, gemini *gateway.Gemini, audioPath string) {
	if audioPath == "" {
		log.Fatal("asr mode requires -audio")
	}

	data, err := os.ReadFile(audioPath)
	if err != nil {
		log.Fatalf("failed to read audio file: %v", err)
	}
	if err := audio.ValidateWAV(data); err != nil {
		log.Fatalf("input is not usable wav: %v", err)
	}

	log.Printf("transcribing %s (%d bytes)", audioPath, len(data))

	transcript := gemini.Transcribe(ctx, data)
	if transcript == "" {
		log.Fatal("transcription returned no text")
	}
	log.Printf("transcript: %q", transcript)
}

func runTTS(ctx context.Context, gemini *gateway.Gemini, cfg *config.Config, text, voice, outputPath string) {
	if text == "" {
		log.Fatal("tts mode requires -text")
	}
	if voice == "" {
		voice = cfg.Gemini.TTSVoice
	}
	if outputPath == "" {
		outputPath = fmt.Sprintf("tts-output-%d.wav", time.Now().Unix())
	}

	log.Printf("synthesizing with voice %s", voice)

	pcm := gemini.Synthesize(ctx, text, voice)
	if len(pcm) == 0 {
		log.Fatal("synthesis returned no audio")
	}

	if err := os.WriteFile(outputPath, audio.EncodeWAV(pcm), 0o644); err != nil {
		log.Fatalf("failed to write audio file: %v", err)
	}
	log.Printf("wrote %s (%d bytes of pcm)", outputPath, len(pcm))
}
