package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"git.fiblab.net/sim/tourplan/metrics"
	"git.fiblab.net/sim/tourplan/planner"
	"git.fiblab.net/sim/tourplan/publisher"
	"git.fiblab.net/sim/tourplan/report"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	easy "github.com/t-tomalak/logrus-easy-formatter"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"
)

var (
	// 配置信息，未指定时从环境变量（及.env）读取
	networkPathStr = flag.String("network", "", "road network [format: {fspath} or {db}.{col} or postgres://...] (env NETWORK)")
	queryPathStr   = flag.String("query", "", "delivery query [format: {fspath} or {db}.{col} or postgres://...] (env QUERY)")
	mongoURI       = flag.String("mongo_uri", "", "mongo db uri (env MONGO_URI)")
	warehouseRow   = flag.Int64("warehouse", 0, "warehouses row id of a postgres query, 0 means the latest departure")
	timeLimit      = flag.Duration("time-limit", 10*time.Second, "optimizer time limit, negative means unlimited (env TIME_LIMIT)")
	outPath        = flag.String("out", "", "export the itinerary to a .txt, .json or .xlsx file")
	exportNetwork  = flag.String("export-network", "", "write the loaded network to {fspath}.json or {db}.{col}")
	serve          = flag.Bool("serve", false, "serve HTTP requests instead of planning one query")
	listenAddr     = flag.String("listen", "localhost:52101", "HTTP listening address (env LISTEN_ADDR)")
	natsURL        = flag.String("nats", "", "publish itineraries to this NATS server, empty disables (env NATS_URL)")
	metricsAddr    = flag.String("metrics", "", "prometheus listening address, empty disables (env METRICS_ADDR)")
	logLevel       = flag.String("log-level", "info", "log level [debug, info, warn, error, fatal, panic]")

	// 性能测试
	benchmark = flag.Bool("benchmark", false, "benchmark mode")
	pprofAddr = flag.String("pprof", "", "pprof listening address, empty disables")

	LOG_LEVELS = map[string]logrus.Level{
		"debug": logrus.DebugLevel,
		"info":  logrus.InfoLevel,
		"warn":  logrus.WarnLevel,
		"error": logrus.ErrorLevel,
		"fatal": logrus.FatalLevel,
		"panic": logrus.PanicLevel,
	}
)

var log = logrus.WithField("module", "main")

// loadEnv fills flags left at their zero value from the environment.
func loadEnv() error {
	// .env不存在时忽略
	_ = godotenv.Load()
	set := make(map[string]bool)
	flag.Visit(func(f *flag.Flag) { set[f.Name] = true })
	for name, key := range map[string]string{
		"network":   "NETWORK",
		"query":     "QUERY",
		"mongo_uri": "MONGO_URI",
		"listen":    "LISTEN_ADDR",
		"nats":      "NATS_URL",
		"metrics":   "METRICS_ADDR",
	} {
		if v := os.Getenv(key); v != "" && !set[name] {
			if err := flag.Set(name, v); err != nil {
				return err
			}
		}
	}
	if v := os.Getenv("TIME_LIMIT"); v != "" && !set["time-limit"] {
		// 允许纯数字秒
		if sec, err := strconv.ParseFloat(v, 64); err == nil {
			*timeLimit = time.Duration(sec * float64(time.Second))
		} else if err := flag.Set("time-limit", v); err != nil {
			return err
		}
	}
	return nil
}

func main() {
	logrus.SetFormatter(&easy.Formatter{
		TimestampFormat: "2006-01-02 15:04:05.0000",
		LogFormat:       "[%module%] [%time%] [%lvl%] %msg%\n",
	})
	flag.Parse()
	if err := loadEnv(); err != nil {
		logrus.Fatalf("invalid environment: %v", err)
	}
	if level, ok := LOG_LEVELS[*logLevel]; ok {
		logrus.SetLevel(level)
	} else {
		logrus.Fatalf("invalid log level: %s", *logLevel)
	}

	limit := *timeLimit
	if limit < 0 {
		limit = planner.NoTimeLimit
	}
	networkPath, err := NewPath(*networkPathStr)
	if err != nil {
		log.Fatalf("invalid network path: %s", err)
	}
	queryPath, err := NewPath(*queryPathStr)
	if err != nil {
		log.Fatalf("invalid query path: %s", err)
	}

	ctx := context.Background()
	src := newSources(*mongoURI, *warehouseRow)
	var network *planner.Network
	if networkPath == nil && *benchmark {
		network = GridNetwork(*benchmarkGrid, *benchmarkSeed)
	} else {
		doc, err := src.loadNetwork(ctx, networkPath)
		if err != nil {
			log.Fatalf("failed to load network: %v", err)
		}
		if network, err = doc.Network(); err != nil {
			log.Fatalf("invalid network: %v", err)
		}
		if *exportNetwork != "" {
			p, err := NewOutputPath(*exportNetwork)
			if err != nil {
				log.Fatalf("invalid export path: %v", err)
			}
			if err := src.saveNetwork(ctx, p, doc); err != nil {
				log.Fatalf("failed to export network: %v", err)
			}
			log.Infof("network exported to %s", p)
		}
	}
	log.Infof("network: %d intersections, %d roads", network.IntersectionCount(), network.RoadCount())

	var collector *metrics.Collector
	if *metricsAddr != "" {
		collector = metrics.NewCollector(limit)
		collector.Serve(*metricsAddr)
	}
	var pub Publisher
	if *natsURL != "" {
		var pm publisher.PublisherMetrics
		if collector != nil {
			pm = collector
		}
		np, err := publisher.NewNATSPublisher(*natsURL, pm)
		if err != nil {
			log.Fatalf("failed to connect nats: %v", err)
		}
		defer np.Close()
		pub = np
	}
	server := NewTourServer(network, networkPath, src, planner.Config{TimeLimit: limit}, collector, pub)
	defer server.Close()

	if *pprofAddr != "" {
		// 启动pprof
		startHTTPDebugger(*pprofAddr)
	}

	switch {
	case *benchmark:
		// 性能测试
		runBenchmark(server)
	case *serve:
		runServer(server, *listenAddr)
	default:
		if err := runOnce(ctx, server, src, queryPath, *outPath); err != nil {
			server.Close()
			log.Fatal(err)
		}
	}
}

// runOnce plans the query at queryPath and prints the itinerary.
func runOnce(ctx context.Context, server *TourServer, src *sources, queryPath *Path, out string) error {
	doc, err := src.loadQuery(ctx, queryPath)
	if err != nil {
		return err
	}
	q, err := doc.Query()
	if err != nil {
		return err
	}
	plan, err := server.Plan(ctx, q)
	if err != nil {
		return err
	}
	if !plan.Status.HasTour() {
		log.Warn(plan.Status.Message())
		return nil
	}
	if plan.Status != planner.StatusOptimal {
		log.Warn(plan.Status.Message())
	}
	plan.Itinerary.WriteTo(os.Stdout)
	if out != "" {
		if err := report.WriteFile(out, plan); err != nil {
			return err
		}
		log.Infof("itinerary exported to %s", out)
	}
	return nil
}

func runServer(server *TourServer, addr string) {
	// 使用HTTP/2 w.o. TLS
	s := &http.Server{
		Addr:    addr,
		Handler: h2c.NewHandler(server.Handler(), &http2.Server{}),
	}

	// 优雅退出
	// 创建监听退出chan
	signalCh := make(chan os.Signal, 1)
	//监听指定信号 ctrl+c kill
	signal.Notify(signalCh, syscall.SIGINT, syscall.SIGTERM)
	// SIGHUP重新加载路网
	reloadCh := make(chan os.Signal, 1)
	signal.Notify(reloadCh, syscall.SIGHUP)
	go func() {
		for range reloadCh {
			server.Suspend()
			if _, err := server.Reload(context.Background()); err != nil {
				log.Errorf("reload failed: %v", err)
			}
			server.Resume()
		}
	}()
	go func() {
		<-signalCh
		log.Info("stopping...")
		go func() {
			<-signalCh
			os.Exit(1) // 强制结束
		}()
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.Shutdown(ctx)
	}()

	log.Infof("server listening at %v", s.Addr)
	if err := s.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("failed to serve: %v", err)
	}
	log.Info("tourplan closes")
}
