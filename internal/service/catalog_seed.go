package service

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/GTDGit/digistore/internal/models"
)

func seedPrice(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func seedPricePtr(s string) *decimal.Decimal {
	d := seedPrice(s)
	return &d
}

func seedDate(s string) time.Time {
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		panic(err)
	}
	return t
}

// DefaultProducts returns the storefront catalog used when nothing has been
// persisted yet. Each call returns a fresh slice.
func DefaultProducts() []models.Product {
	return []models.Product{
		{
			ID:            1,
			Title:         "Cours complet React & TypeScript",
			Description:   "Maîtrisez React et TypeScript de A à Z avec des projets pratiques",
			Price:         seedPrice("89.99"),
			OriginalPrice: seedPricePtr("149.99"),
			Category:      models.CategoryCourse,
			Rating:        4.8,
			ReviewCount:   1250,
			Image:         "https://images.unsplash.com/photo-1633356122544-f134324a6cee?w=400",
			Badge:         "Bestseller",
			Author:        "Marie Dubois",
			CreatedAt:     seedDate("2024-01-15"),
		},
		{
			ID:          2,
			Title:       "E-book: Guide du Marketing Digital",
			Description: "Stratégies complètes pour dominer le marketing digital en 2025",
			Price:       seedPrice("29.99"),
			Category:    models.CategoryEbook,
			Rating:      4.6,
			ReviewCount: 890,
			Image:       "https://images.unsplash.com/photo-1432888622747-4eb9a8efeb07?w=400",
			Author:      "Pierre Martin",
			CreatedAt:   seedDate("2024-02-20"),
		},
		{
			ID:          3,
			Title:       "Abonnement Premium Design",
			Description: "Accès illimité à plus de 10,000 templates et ressources design",
			Price:       seedPrice("19.99"),
			Category:    models.CategorySubscription,
			Rating:      4.9,
			ReviewCount: 2150,
			Image:       "https://images.unsplash.com/photo-1626785774573-4b799315345d?w=400",
			Badge:       "Populaire",
			Author:      "Studio Creative",
			CreatedAt:   seedDate("2024-03-10"),
		},
		{
			ID:            4,
			Title:         "Certification Data Science",
			Description:   "Certification reconnue en science des données avec projets réels",
			Price:         seedPrice("199.99"),
			OriginalPrice: seedPricePtr("299.99"),
			Category:      models.CategoryCertification,
			Rating:        4.7,
			ReviewCount:   650,
			Image:         "https://images.unsplash.com/photo-1551288049-bebda4e38f71?w=400",
			Author:        "Institut DataPro",
			CreatedAt:     seedDate("2024-04-05"),
		},
		{
			ID:          5,
			Title:       "Template E-commerce Shopify",
			Description: "Template professionnel pour boutique en ligne avec toutes les fonctionnalités",
			Price:       seedPrice("49.99"),
			Category:    models.CategoryTemplate,
			Rating:      4.5,
			ReviewCount: 320,
			Image:       "https://images.unsplash.com/photo-1556742049-0cfed4f6a45d?w=400",
			Author:      "WebDesign Pro",
			CreatedAt:   seedDate("2024-05-12"),
		},
		{
			ID:          6,
			Title:       "Formation YouTube Success",
			Description: "Tout pour créer et monétiser une chaîne YouTube à succès",
			Price:       seedPrice("79.99"),
			Category:    models.CategoryCourse,
			Rating:      4.4,
			ReviewCount: 980,
			Image:       "https://images.unsplash.com/photo-1611162617474-5b21e879e113?w=400",
			Badge:       models.BadgeNew,
			Author:      "Alex Creator",
			CreatedAt:   seedDate("2024-06-18"),
		},
		{
			ID:          7,
			Title:       "Pack Audio Beats Premium",
			Description: "Collection de 500+ beats et samples pour producteurs musicaux",
			Price:       seedPrice("39.99"),
			Category:    models.CategoryAudio,
			Rating:      4.6,
			ReviewCount: 420,
			Image:       "https://images.unsplash.com/photo-1493225457124-a3eb161ffa5f?w=400",
			Author:      "BeatMaker Studio",
			CreatedAt:   seedDate("2024-07-22"),
		},
		{
			ID:            8,
			Title:         "Masterclass Photographie",
			Description:   "Techniques avancées de photographie portrait et paysage",
			Price:         seedPrice("129.99"),
			OriginalPrice: seedPricePtr("199.99"),
			Category:      models.CategoryCourse,
			Rating:        4.9,
			ReviewCount:   1580,
			Image:         "https://images.unsplash.com/photo-1516035069371-29a1b244cc32?w=400",
			Badge:         "Top Rated",
			Author:        "Sophie Lens",
			CreatedAt:     seedDate("2024-08-14"),
		},
		{
			ID:          9,
			Title:       "Certification Google Ads",
			Description: "Préparation complète aux certifications Google Ads et Analytics",
			Price:       seedPrice("149.99"),
			Category:    models.CategoryCertification,
			Rating:      4.7,
			ReviewCount: 760,
			Image:       "https://images.unsplash.com/photo-1460925895917-afdab827c52f?w=400",
			Author:      "Digital Academy",
			CreatedAt:   seedDate("2024-09-01"),
		},
	}
}
