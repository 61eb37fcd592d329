package service

import (
	"context"
	"errors"
	"strings"

	"github.com/mmeshcher/foodhall-system/internal/apperr"
	"github.com/mmeshcher/foodhall-system/internal/model"
	"github.com/mmeshcher/foodhall-system/internal/repository"
)

// ResolveShop определяет лавку по отсканированному штрихкоду: штрихкод
// принадлежит лавке, если начинается с одного из её зарегистрированных
// префиксов. Совпадение с несколькими лавками — ошибка конфигурации,
// о которой сообщается, а не угадывается.
func (s *Service) ResolveShop(ctx context.Context, barcode string) (*model.BarcodeInfo, error) {
	infos, err := s.repo.ListBarcodeInfo(ctx)
	if err != nil {
		return nil, err
	}

	var matched []model.BarcodeInfo
	for _, info := range infos {
		for _, prefix := range info.BarcodeStartsWith {
			if prefix != "" && strings.HasPrefix(barcode, prefix) {
				matched = append(matched, info)
				break
			}
		}
	}

	switch len(matched) {
	case 0:
		return nil, apperr.New(apperr.CodeBarcodeNoMatch, "no shop matches scanned barcode")
	case 1:
		return &matched[0], nil
	}
	return nil, apperr.Newf(apperr.CodeBarcodeAmbiguous, "barcode matches %d shops, prefix configuration overlaps", len(matched))
}

// ResolveTicket находит билет по штрихкоду среди кандидатов. Ранее
// закреплённое соответствие авторитетно и возвращается без повторного
// сопоставления префиксов; первое успешное разрешение закрепляется.
func (s *Service) ResolveTicket(ctx context.Context, callerUID, barcode string, candidateTicketIDs []string) (string, error) {
	if barcode == "" {
		return "", apperr.New(apperr.CodeValidation, "barcode must be set")
	}

	bind, err := s.repo.GetBarcodeBinding(ctx, barcode)
	if err == nil {
		return bind.TicketID, nil
	}
	if !errors.Is(err, repository.ErrBindingNotFound) {
		return "", err
	}

	info, err := s.ResolveShop(ctx, barcode)
	if err != nil {
		return "", err
	}

	tickets, err := s.repo.GetTicketsByIDs(ctx, candidateTicketIDs)
	if err != nil {
		return "", err
	}

	var matched []model.Ticket
	for _, t := range tickets {
		if t.ShopID == info.ShopID {
			matched = append(matched, t)
		}
	}

	switch len(matched) {
	case 0:
		return "", apperr.Newf(apperr.CodeBarcodeNoMatch, "no candidate ticket belongs to shop %s", info.ShopID)
	case 1:
	default:
		return "", apperr.Newf(apperr.CodeBarcodeAmbiguous, "%d candidate tickets belong to shop %s", len(matched), info.ShopID)
	}

	// Запись могла проиграть гонку другой кассе: авторитетен сохранённый
	// ticket_id, а не локально подобранный кандидат.
	stored, err := s.repo.CreateBarcodeBinding(ctx, &model.TicketBarcodeBind{
		Barcode:  barcode,
		UID:      callerUID,
		TicketID: matched[0].ID,
	})
	if err != nil {
		return "", err
	}

	return stored, nil
}
