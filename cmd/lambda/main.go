package main

import (
	"context"

	"github.com/ammiranda/medicine_service/internal/lambda"
	"github.com/ammiranda/medicine_service/repository"

	awslambda "github.com/aws/aws-lambda-go/lambda"
)

func main() {
	backend := repository.NewMemoryBackend()
	if err := backend.Initialize(context.Background()); err != nil {
		panic(err)
	}

	handler := lambda.NewHandler(backend.Categories())

	awslambda.Start(handler.Handle)
}
