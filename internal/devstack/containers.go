// Package devstack starts the portal's backing services in Docker for local
// development and end-to-end runs: MariaDB, MinIO and the portal image built
// from the repository Dockerfile. Expects environment variables to be loaded
// from .env files.
package devstack

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/docker/docker/api/types/build"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/client"
	"github.com/docker/go-connections/nat"
	_ "github.com/go-sql-driver/mysql"
	"github.com/google/uuid"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/network"
	"github.com/testcontainers/testcontainers-go/wait"
)

const portalImageName = "portal-test:latest"

type Stack struct {
	Network         *testcontainers.DockerNetwork
	DBContainer     testcontainers.Container
	MinioContainer  testcontainers.Container
	PortalContainer testcontainers.Container
}

func (s *Stack) Terminate(t *testing.T) {
	ctx := context.Background()
	if s.PortalContainer != nil {
		if err := s.PortalContainer.Terminate(ctx); err != nil {
			logMessage(t, "Failed to terminate portal: %v", err)
		}
	}
	if s.MinioContainer != nil {
		if err := s.MinioContainer.Terminate(ctx); err != nil {
			logMessage(t, "Failed to terminate MinIO: %v", err)
		}
	}
	if s.DBContainer != nil {
		if err := s.DBContainer.Terminate(ctx); err != nil {
			logMessage(t, "Failed to terminate MariaDB: %v", err)
		}
	}
	if s.Network != nil {
		if err := s.Network.Remove(ctx); err != nil {
			logMessage(t, "Failed to remove network: %v", err)
		}
	}
}

// Create starts the full stack and returns it running. On any failure the
// partial stack is torn down before returning.
func Create(t *testing.T) (*Stack, error) {
	ctx := context.Background()
	stack := &Stack{}

	nw, err := network.New(ctx)
	if err != nil {
		exitWithError(t, err, "Failed to create network")
	}
	stack.Network = nw
	networkName := nw.Name

	// MariaDB
	dbAlias := envDefault("DB_HOST", "db")
	tcpDbPort, err := nat.NewPort("tcp", envDefault("DB_PORT", "3306"))
	if err != nil {
		stack.Terminate(t)
		exitWithError(t, err, "Failed to create DB port")
	}
	dbContainer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        envDefault("DB_IMAGE", "mariadb:11"),
			ExposedPorts: []string{string(tcpDbPort)},
			Env: map[string]string{
				"MYSQL_ROOT_PASSWORD": os.Getenv("DB_ROOT_PASSWORD"),
				"MYSQL_DATABASE":      os.Getenv("DB_DATABASE"),
				"MYSQL_USER":          os.Getenv("DB_USER"),
				"MYSQL_PASSWORD":      os.Getenv("DB_PASSWORD"),
			},
			WaitingFor: wait.ForListeningPort(tcpDbPort).WithStartupTimeout(60 * time.Second),
			Networks:   []string{networkName},
			NetworkAliases: map[string][]string{
				networkName: {dbAlias},
			},
		},
		Started: true,
	})
	if err != nil {
		stack.Terminate(t)
		exitWithError(t, err, "Failed to start MariaDB")
	}
	stack.DBContainer = dbContainer

	dbHost, _ := dbContainer.Host(ctx)
	dbPort, _ := dbContainer.MappedPort(ctx, tcpDbPort)
	if err := initMariaDB(dbHost, dbPort); err != nil {
		stack.Terminate(t)
		exitWithError(t, err, "Failed to initialize database")
	}

	// MinIO
	minioAlias := "minio"
	tcpMinioPort, err := nat.NewPort("tcp", "9000")
	if err != nil {
		stack.Terminate(t)
		exitWithError(t, err, "Failed to create MinIO port")
	}
	minioContainer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        envDefault("MINIO_IMAGE", "minio/minio:latest"),
			ExposedPorts: []string{string(tcpMinioPort)},
			Cmd:          []string{"server", "/data"},
			Env: map[string]string{
				"MINIO_ROOT_USER":     os.Getenv("MINIO_ACCESS_KEY"),
				"MINIO_ROOT_PASSWORD": os.Getenv("MINIO_SECRET_KEY"),
			},
			WaitingFor: wait.ForListeningPort(tcpMinioPort).WithStartupTimeout(30 * time.Second),
			Networks:   []string{networkName},
			NetworkAliases: map[string][]string{
				networkName: {minioAlias},
			},
		},
		Started: true,
	})
	if err != nil {
		stack.Terminate(t)
		exitWithError(t, err, "Failed to start MinIO")
	}
	stack.MinioContainer = minioContainer

	minioHost, _ := minioContainer.Host(ctx)
	minioPort, _ := minioContainer.MappedPort(ctx, tcpMinioPort)
	logMessage(t, "MINIO_ENDPOINT=%s:%s", minioHost, minioPort.Port())

	// Portal image
	exists, err := imageExists(ctx, portalImageName)
	if err != nil {
		stack.Terminate(t)
		exitWithError(t, err, "Failed to check if image exists")
	}

	portalPortNumber := envDefault("PORT", "3000")
	tcpPortalPort, err := nat.NewPort("tcp", portalPortNumber)
	if err != nil {
		stack.Terminate(t)
		exitWithError(t, err, "Failed to create portal port")
	}

	debugContainer := os.Getenv("DEBUG_CONTAINER")
	hostConfigModifier := func(hostConfig *container.HostConfig) {
		if debugContainer == "true" {
			hostConfig.CapAdd = []string{"SYS_PTRACE"}
			hostConfig.SecurityOpt = []string{"apparmor:unconfined"}
		}
	}

	portalContainerRequest := testcontainers.ContainerRequest{
		ExposedPorts: []string{string(tcpPortalPort)},
		Env: map[string]string{
			"DB_TYPE":          "mariadb",
			"DB_HOST":          dbAlias,
			"DB_PORT":          envDefault("DB_PORT", "3306"),
			"DB_DATABASE":      os.Getenv("DB_DATABASE"),
			"DB_USER":          os.Getenv("DB_USER"),
			"DB_PASSWORD":      os.Getenv("DB_PASSWORD"),
			"JWT_SECRET":       os.Getenv("JWT_SECRET"),
			"BLOB_DRIVER":      "minio",
			"MINIO_ENDPOINT":   fmt.Sprintf("%s:9000", minioAlias),
			"MINIO_ACCESS_KEY": os.Getenv("MINIO_ACCESS_KEY"),
			"MINIO_SECRET_KEY": os.Getenv("MINIO_SECRET_KEY"),
			"PORT":             portalPortNumber,
		},
		HostConfigModifier: hostConfigModifier,
		WaitingFor:         wait.ForHTTP("/healthz").WithPort(tcpPortalPort).WithStartupTimeout(60 * time.Second),
		Networks:           []string{networkName},
	}

	if !exists {
		logMessage(t, "Image %s does not exist, building...", portalImageName)
		sessionID := uuid.New().String()
		buildContext := os.Getenv("TESTCONTAINERS_BUILD_CONTEXT")
		if buildContext == "" {
			buildContext = "../.."
		}
		portalContainerRequest.FromDockerfile = testcontainers.FromDockerfile{
			Context:    buildContext,
			Dockerfile: "Dockerfile",
			Repo:       "portal-test",
			Tag:        "latest",
			KeepImage:  true,
			BuildArgs: map[string]*string{
				"RESOURCE_REAPER_SESSION_ID": &sessionID,
			},
			BuildOptionsModifier: func(opts *build.ImageBuildOptions) {
				opts.Target = "runtime"
			},
			PrintBuildLog: true,
		}
	} else {
		logMessage(t, "Image %s exists, reusing...", portalImageName)
		portalContainerRequest.Image = portalImageName
	}

	portalContainer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: portalContainerRequest,
		Started:          true,
	})
	if err != nil {
		stack.Terminate(t)
		exitWithError(t, err, "Failed to start portal")
	}
	stack.PortalContainer = portalContainer

	portalHost, _ := portalContainer.Host(ctx)
	portalPort, _ := portalContainer.MappedPort(ctx, tcpPortalPort)
	logMessage(t, "BASE_URL=http://%s:%s", portalHost, portalPort.Port())

	logMessage(t, "Portal dev stack started successfully")
	return stack, nil
}

func initMariaDB(host string, port nat.Port) error {
	db, err := sql.Open("mysql", fmt.Sprintf("root:%s@tcp(%s:%s)/", os.Getenv("DB_ROOT_PASSWORD"), host, port.Port()))
	if err != nil {
		return fmt.Errorf("connect to MariaDB for setup: %w", err)
	}
	defer db.Close()

	// Wait for the server to be really ready
	for i := 0; i < 30; i++ {
		err = db.Ping()
		if err == nil {
			break
		}
		time.Sleep(1 * time.Second)
	}
	if err != nil {
		return fmt.Errorf("MariaDB not ready after 30 seconds: %w", err)
	}

	stmts := []string{
		fmt.Sprintf("CREATE DATABASE IF NOT EXISTS %s", os.Getenv("DB_DATABASE")),
		fmt.Sprintf("CREATE USER IF NOT EXISTS '%s'@'%%' IDENTIFIED BY '%s'", os.Getenv("DB_USER"), os.Getenv("DB_PASSWORD")),
		fmt.Sprintf("GRANT ALL PRIVILEGES ON %s.* TO '%s'@'%%'", os.Getenv("DB_DATABASE"), os.Getenv("DB_USER")),
		"FLUSH PRIVILEGES",
	}
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("%w : when executing > %s", err, stmt)
		}
	}
	return nil
}

func imageExists(ctx context.Context, imageName string) (bool, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return false, err
	}
	defer cli.Close()

	images, err := cli.ImageList(ctx, image.ListOptions{})
	if err != nil {
		return false, err
	}

	for _, img := range images {
		for _, tag := range img.RepoTags {
			if tag == imageName {
				return true, nil
			}
		}
	}

	return false, nil
}

func envDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func logMessage(t *testing.T, format string, args ...any) {
	if t != nil {
		t.Logf(format, args...)
	} else {
		fmt.Printf(format+"\n", args...)
	}
}

func exitWithError(t *testing.T, err error, msg string) {
	if t != nil {
		t.Fatalf(msg+": %v", err)
	} else {
		fmt.Printf(msg+": %v\n", err)
		os.Exit(1)
	}
}
